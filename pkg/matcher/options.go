package matcher

import (
	"github.com/MrWong99/dialogic/pkg/textnorm"
	"github.com/MrWong99/dialogic/pkg/vectors"
)

// Option configures a matcher. Options that do not apply to a variant are
// ignored by it.
type Option func(*settings)

type settings struct {
	thresholds Thresholds
	preprocess func(string) string
	// preprocessSet records an explicit preprocessing choice; regex
	// matchers see raw text otherwise.
	preprocessSet bool
	stopwords     map[string]float64

	metric  string
	byWords bool

	smooth float64
	ngram  int

	anchors bool
	merge   bool
	engine  Engine

	vectors        vectors.Table
	solver         Solver
	rawWordVectors bool

	classifier Classifier
	weights    []float64

	phoneticThreshold float64
}

func newSettings(opts []Option) settings {
	s := settings{
		thresholds: Thresholds{Default: DefaultThreshold},
		preprocess: textnorm.Normalize,
		metric:     "cosine",
		byWords:    true,
		smooth:     DefaultSmooth,
		ngram:      1,
		anchors:    true,
		merge:      true,
		engine:     StdEngine{},

		phoneticThreshold: defaultPhoneticThreshold,
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// WithThreshold sets the global threshold. Default: 0.5.
func WithThreshold(v float64) Option {
	return func(s *settings) {
		s.thresholds.Default = v
	}
}

// WithLabelThresholds sets per-label threshold overrides.
func WithLabelThresholds(m map[string]float64) Option {
	return func(s *settings) {
		for label, v := range m {
			s.thresholds.SetThreshold(label, v)
		}
	}
}

// WithNormalizer preprocesses texts with n, enabling lemmatization when n
// has a lemmatizer. The default preprocessing is [textnorm.Normalize].
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(s *settings) {
		s.preprocess = n.Normalize
		s.preprocessSet = true
	}
}

// WithPreprocess replaces text preprocessing with fn. A nil fn passes
// texts through unchanged.
func WithPreprocess(fn func(string) string) Option {
	return func(s *settings) {
		if fn == nil {
			fn = func(t string) string { return t }
		}
		s.preprocess = fn
		s.preprocessSet = true
	}
}

// WithStopwords makes the listed words carry no weight in tf-idf matching.
func WithStopwords(words ...string) Option {
	return func(s *settings) {
		if s.stopwords == nil {
			s.stopwords = make(map[string]float64)
		}
		for _, w := range words {
			s.stopwords[textnorm.Normalize(w)] = 0
		}
	}
}

// WithStopwordWeights scales individual words in tf-idf matching by a
// weight in (0, 1].
func WithStopwordWeights(weights map[string]float64) Option {
	return func(s *settings) {
		if s.stopwords == nil {
			s.stopwords = make(map[string]float64)
		}
		for w, v := range weights {
			s.stopwords[textnorm.Normalize(w)] = v
		}
	}
}

// WithMetric selects the string-similarity metric of a [TextDistance]
// matcher: "levenshtein", "cosine", "jaccard" or "jaro_winkler".
func WithMetric(name string) Option {
	return func(s *settings) {
		s.metric = name
	}
}

// WithByWords makes a [TextDistance] matcher compare token sequences
// instead of character sequences.
func WithByWords(b bool) Option {
	return func(s *settings) {
		s.byWords = b
	}
}

// DefaultSmooth is the document-frequency smoothing of tf-idf.
const DefaultSmooth = 2.0

// WithSmooth sets the document-frequency smoothing of tf-idf. Values of 1
// or less would make ln(smooth + df) vanish for unseen terms and are
// replaced by [DefaultSmooth].
func WithSmooth(v float64) Option {
	return func(s *settings) {
		s.smooth = v
	}
}

// WithNGram adds n-grams (with BOS/EOS markers) to tf-idf tokens when n > 1.
func WithNGram(n int) Option {
	return func(s *settings) {
		s.ngram = n
	}
}

// WithAnchors controls whether regex patterns must match the whole text.
// Default: true.
func WithAnchors(b bool) Option {
	return func(s *settings) {
		s.anchors = b
	}
}

// WithMerge controls whether the patterns of one label are OR-merged into a
// single expression. Default: true.
func WithMerge(b bool) Option {
	return func(s *settings) {
		s.merge = b
	}
}

// WithEngine selects the regular-expression engine. Default: [StdEngine].
func WithEngine(e Engine) Option {
	return func(s *settings) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithVectors sets the word-vector table used by w2v and wmd matchers.
func WithVectors(t vectors.Table) Option {
	return func(s *settings) {
		s.vectors = t
	}
}

// WithSolver sets the optimal-transport solver used by the wmd matcher.
func WithSolver(sv Solver) Option {
	return func(s *settings) {
		s.solver = sv
	}
}

// WithRawWordVectors disables unit-normalization of individual word vectors.
func WithRawWordVectors() Option {
	return func(s *settings) {
		s.rawWordVectors = true
	}
}

// WithClassifier sets the model behind a [ModelBased] matcher.
func WithClassifier(c Classifier) Option {
	return func(s *settings) {
		s.classifier = c
	}
}

// WithWeights sets the member weights of a [WeightedAverage] ensemble.
func WithWeights(w ...float64) Option {
	return func(s *settings) {
		s.weights = w
	}
}

// WithPhoneticThreshold sets the minimal Jaro-Winkler score a phonetically
// related token pair must reach to count as a match. Default: 0.70.
func WithPhoneticThreshold(v float64) Option {
	return func(s *settings) {
		s.phoneticThreshold = v
	}
}
