package bench

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allRuntimes(t *testing.T, data []byte) []Runtime {
	t.Helper()
	runtimes := make([]Runtime, 0, len(newRuntimeFuncs))
	for name, newFn := range newRuntimeFuncs {
		rt, err := newFn(data)
		require.NoErrorf(t, err, "constructing %s", name)
		runtimes = append(runtimes, rt)
	}
	return runtimes
}

// TestFacIterAgreesAcrossRuntimes pins that every registered runtime
// computes the same 64-bit-wrapped value for the same input, which is what
// BenchmarkFacIter's timings are actually comparable over.
func TestFacIterAgreesAcrossRuntimes(t *testing.T) {
	const n = 30
	data := facIterModule()
	runtimes := allRuntimes(t, data)
	require.NotEmpty(t, runtimes)

	want, err := runtimes[0].CallFacIter(n)
	require.NoError(t, err)

	for _, rt := range runtimes[1:] {
		got, err := rt.CallFacIter(n)
		require.NoError(t, err)
		require.Equalf(t, want, got, "%s disagreed with %s", rt.Name(), runtimes[0].Name())
		require.NoError(t, rt.Close())
	}
	require.NoError(t, runtimes[0].Close())
}

func BenchmarkFacIter(b *testing.B) {
	const n = 30
	data := facIterModule()

	for name, newFn := range newRuntimeFuncs {
		rt, err := newFn(data)
		if err != nil {
			b.Logf("skipping %s: %v", name, err)
			continue
		}
		b.Run(name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := rt.CallFacIter(n); err != nil {
					b.Fatal(err)
				}
			}
		})
		rt.Close()
	}
}
