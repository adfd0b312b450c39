package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	embmock "github.com/MrWong99/dialogic/pkg/provider/embeddings/mock"
)

func TestEmbeddingsFallback_Embed_Failover(t *testing.T) {
	t.Parallel()

	primary := &embmock.Provider{EmbedErr: errors.New("rate limited"), DimensionsValue: 3, ModelIDValue: "primary-model"}
	secondary := &embmock.Provider{EmbedResult: []float32{1, 0, 0}, DimensionsValue: 3, ModelIDValue: "secondary-model"}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		Breaker: BreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	got, err := fb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float32{1, 0, 0}, got); diff != "" {
		t.Errorf("Embed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"hello"}, secondary.Embedded()); diff != "" {
		t.Errorf("secondary texts mismatch (-want +got):\n%s", diff)
	}
	if fb.Dimensions() != 3 || fb.ModelID() != "primary-model" {
		t.Errorf("Dimensions/ModelID = %d/%q, want 3/primary-model", fb.Dimensions(), fb.ModelID())
	}
}

func TestEmbeddingsFallback_EmbedBatch(t *testing.T) {
	t.Parallel()

	primary := &embmock.Provider{EmbedBatchResult: [][]float32{{1}, {2}}}
	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})

	got, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([][]float32{{1}, {2}}, got); diff != "" {
		t.Errorf("EmbedBatch mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbeddingsFallback_AllFail(t *testing.T) {
	t.Parallel()

	fb := NewEmbeddingsFallback(&embmock.Provider{EmbedErr: errors.New("down")}, "primary", FallbackConfig{})
	fb.AddFallback("secondary", &embmock.Provider{EmbedErr: errors.New("down too")})

	if _, err := fb.EmbedBatch(context.Background(), []string{"x"}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
