package namespace

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_CaseAndWhitespaceInsensitive(t *testing.T) {
	want := Resolve("python")
	for _, topic := range []string{"Python ", "PYTHON", "  python\t", "\npyThon"} {
		assert.Equal(t, want, Resolve(topic), "topic %q", topic)
	}
}

func TestResolve_Format(t *testing.T) {
	ns := Resolve("SQL basics")
	require.Len(t, ns, len(Prefix)+16)
	assert.True(t, IsTopicNamespace(ns))

	sum := md5.Sum([]byte("sql basics"))
	assert.Equal(t, "topic-"+hex.EncodeToString(sum[:])[:16], ns)
}

func TestResolve_Deterministic(t *testing.T) {
	assert.Equal(t, Resolve("Machine Learning"), Resolve("Machine Learning"))
	assert.NotEqual(t, Resolve("SQL"), Resolve("Python"))
}

func TestResolve_NoCollisions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789 -_"
	seen := make(map[string]string, 10000)
	for len(seen) < 10000 {
		n := 3 + rng.Intn(30)
		b := make([]byte, n)
		for i := range b {
			b[i] = alphabet[rng.Intn(len(alphabet))]
		}
		topic := Normalize(string(b))
		if topic == "" {
			continue
		}
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = Resolve(topic)
	}

	byNamespace := make(map[string]string, len(seen))
	for topic, ns := range seen {
		if prev, ok := byNamespace[ns]; ok {
			t.Fatalf("collision: %q and %q both resolve to %s", prev, topic, ns)
		}
		byNamespace[ns] = topic
	}
	assert.Len(t, byNamespace, 10000)
}

func TestIsTopicNamespace(t *testing.T) {
	tests := []struct {
		ns   string
		want bool
	}{
		{Resolve("x"), true},
		{"topic-", false},
		{"topic-zzzzzzzzzzzzzzzz", false},
		{"other-0123456789abcdef", false},
		{"topic-0123456789abcdef", true},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTopicNamespace(tt.ns), tt.ns)
	}
}
