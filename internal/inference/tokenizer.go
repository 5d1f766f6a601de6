package inference

import (
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

// DefaultEncoding is used for models tiktoken does not know, which is every
// local model.
const DefaultEncoding = "cl100k_base"

// encodingRetry is how long a tokenizer keeps using runes after the BPE
// ranks failed to load before it tries again.
const encodingRetry = time.Minute

var (
	encoderCache   = make(map[string]*tiktoken.Tiktoken)
	encoderCacheMu sync.RWMutex

	// loadEncoding fetches BPE ranks, from the network on first use.
	loadEncoding = tiktoken.GetEncoding
)

// TiktokenTokenizer counts and truncates with a BPE encoding. It is an
// approximation of the served model's own tokenizer. When the encoding
// cannot be loaded it falls back to one token per rune, so truncation
// stays available offline at the cost of cutting shorter.
type TiktokenTokenizer struct {
	encoding string
	log      zerolog.Logger

	mu       sync.Mutex
	failedAt time.Time
}

// NewTiktokenTokenizer uses the named encoding, or DefaultEncoding when empty.
func NewTiktokenTokenizer(encoding string) *TiktokenTokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenTokenizer{encoding: encoding, log: zerolog.Nop()}
}

// WithLogger sets the logger used to report fallback to rune tokens.
func (t *TiktokenTokenizer) WithLogger(l zerolog.Logger) *TiktokenTokenizer {
	t.log = l
	return t
}

func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	tkm := t.encoder()
	if tkm == nil {
		return encodeRunes(text), nil
	}
	return tkm.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	tkm := t.encoder()
	if tkm == nil {
		return decodeRunes(tokens), nil
	}
	return tkm.Decode(tokens), nil
}

// encoder returns nil while the encoding is unavailable. A failed load is
// retried once encodingRetry has passed.
func (t *TiktokenTokenizer) encoder() *tiktoken.Tiktoken {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.failedAt.IsZero() && time.Since(t.failedAt) < encodingRetry {
		return nil
	}
	tkm, err := encoderFor(t.encoding)
	if err != nil {
		t.failedAt = time.Now()
		t.log.Warn().Err(err).Str("encoding", t.encoding).Msg("tokenizer unavailable; counting runes")
		return nil
	}
	t.failedAt = time.Time{}
	return tkm
}

func encoderFor(encoding string) (*tiktoken.Tiktoken, error) {
	encoderCacheMu.RLock()
	if tkm, ok := encoderCache[encoding]; ok {
		encoderCacheMu.RUnlock()
		return tkm, nil
	}
	encoderCacheMu.RUnlock()

	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	if tkm, ok := encoderCache[encoding]; ok {
		return tkm, nil
	}
	tkm, err := loadEncoding(encoding)
	if err != nil {
		return nil, err
	}
	encoderCache[encoding] = tkm
	return tkm, nil
}

func encodeRunes(text string) []int {
	r := []rune(text)
	out := make([]int, len(r))
	for i, c := range r {
		out[i] = int(c)
	}
	return out
}

func decodeRunes(tokens []int) string {
	r := make([]rune, len(tokens))
	for i, c := range tokens {
		r[i] = rune(c)
	}
	return string(r)
}
