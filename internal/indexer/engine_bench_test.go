package indexer

import (
	"fmt"
	"testing"
)

// BenchmarkEngineIndex measures full analysis plus insert throughput at
// various pre-loaded corpus sizes.
func BenchmarkEngineIndex(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			engine := newTestEngine(b, false)
			for i := 0; i < preload; i++ {
				ref := fmt.Sprintf("preload-%d", i)
				_ = engine.IndexDocument(ref, map[string]string{
					"title": "preload doc",
					"body":  "preloading documents for benchmark warmup phase",
				})
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ref := fmt.Sprintf("bench-%d", i)
				err := engine.IndexDocument(ref, map[string]string{
					"title": "benchmark title",
					"body":  "benchmark document body for measuring indexing throughput",
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEngineLookupParallel measures concurrent read throughput over
// 10 000 documents.
func BenchmarkEngineLookupParallel(b *testing.B) {
	engine := newTestEngine(b, false)
	for i := 0; i < 10000; i++ {
		_ = engine.IndexDocument(fmt.Sprintf("doc-%d", i), map[string]string{
			"title": "distributed search",
			"body":  "search engine with distributed indexing and query processing",
		})
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = engine.Lookup("search")
		}
	})
}

// BenchmarkEngineSnapshot measures the cost of exporting the index.
func BenchmarkEngineSnapshot(b *testing.B) {
	engine := newTestEngine(b, false)
	for i := 0; i < 5000; i++ {
		_ = engine.IndexDocument(fmt.Sprintf("doc-%d", i), map[string]string{
			"title": "snapshot benchmark",
			"body":  "testing snapshot performance with multiple terms and documents",
		})
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Snapshot()
	}
}
