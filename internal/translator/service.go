package translator

import (
	"context"
	"strings"
	"unicode"

	"testctl/internal/step"
	"testctl/pkg/logging"
)

// Service implements Translator: LLM first when one is configured, rules
// otherwise, and every answer memoized.
type Service struct {
	llm   LLM
	cache *Cache
}

// NewService creates a translator. llm may be nil.
func NewService(llm LLM, cacheSize int) *Service {
	return &Service{llm: llm, cache: NewCache(cacheSize)}
}

type classifyResult struct {
	kind step.Kind
	ok   bool
}

type suggestResult struct {
	selector string
	ok       bool
}

func (s *Service) hasLLM() bool {
	return s.llm != nil
}

// Classify asks the LLM for a backend category. Without an LLM, or with an
// answer that names no backend, it reports false.
func (s *Service) Classify(ctx context.Context, text string) (step.Kind, bool) {
	if !s.hasLLM() {
		return "", false
	}
	key := "classify\x00" + text
	if v, ok := s.cache.get(key); ok {
		r := v.(classifyResult)
		return r.kind, r.ok
	}

	var res classifyResult
	answer, err := s.llm.Classify(ctx, text)
	if err != nil {
		logging.Debug("Translator", "classify fell back: %v", err)
		return "", false
	}
	res.kind, res.ok = step.ParseKind(firstWord(answer))
	if !res.ok {
		logging.Debug("Translator", "classify answer %q names no backend", answer)
	}
	s.cache.add(key, res)
	return res.kind, res.ok
}

// TranslateAPI returns the request for command.
func (s *Service) TranslateAPI(ctx context.Context, command, baseURL string) APIRequest {
	key := "api\x00" + baseURL + "\x00" + command
	if v, ok := s.cache.get(key); ok {
		return cloneRequest(v.(APIRequest))
	}

	var req APIRequest
	translated := false
	if s.hasLLM() {
		r, err := s.llm.TranslateAPI(ctx, command, baseURL)
		if err == nil {
			req, translated = r, true
		} else {
			logging.Debug("Translator", "translate_api fell back: %v", err)
		}
	}
	if !translated {
		req = ParseAPICommand(command, baseURL)
	}
	s.cache.add(key, req)
	return cloneRequest(req)
}

// TranslateSQL returns the statement for command.
func (s *Service) TranslateSQL(ctx context.Context, command string) SQLStatement {
	key := "sql\x00" + command
	if v, ok := s.cache.get(key); ok {
		return v.(SQLStatement)
	}

	var stmt SQLStatement
	translated := false
	if s.hasLLM() {
		st, err := s.llm.TranslateSQL(ctx, command)
		if err == nil {
			stmt, translated = st, true
		} else {
			logging.Debug("Translator", "translate_sql fell back: %v", err)
		}
	}
	if !translated {
		stmt = TranslateSQLCommand(command)
	}
	s.cache.add(key, stmt)
	return stmt
}

// SuggestLocator asks the LLM for a selector matching description.
// Failures are not cached so a later heal can try again.
func (s *Service) SuggestLocator(ctx context.Context, description string) (string, bool) {
	if !s.hasLLM() || strings.TrimSpace(description) == "" {
		return "", false
	}
	key := "locator\x00" + description
	if v, ok := s.cache.get(key); ok {
		r := v.(suggestResult)
		return r.selector, r.ok
	}

	sel, err := s.llm.SuggestLocator(ctx, description)
	if err != nil || sel == "" {
		logging.Debug("Translator", "suggest_locator gave nothing: %v", err)
		return "", false
	}
	s.cache.add(key, suggestResult{selector: sel, ok: true})
	return sel, true
}

// Embed returns an embedding vector for text.
func (s *Service) Embed(ctx context.Context, text string) ([]float64, bool) {
	if !s.hasLLM() {
		return nil, false
	}
	key := "embed\x00" + text
	if v, ok := s.cache.get(key); ok {
		return v.([]float64), true
	}
	vec, err := s.llm.Embed(ctx, text)
	if err != nil {
		logging.Debug("Translator", "embed unavailable: %v", err)
		return nil, false
	}
	s.cache.add(key, vec)
	return vec, true
}

// Close releases the LLM connection if it has one.
func (s *Service) Close() error {
	if c, ok := s.llm.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// firstWord returns the leading word of an answer such as "UI." or
// "api - it calls an endpoint".
func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func cloneRequest(r APIRequest) APIRequest {
	if r.Headers != nil {
		h := make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			h[k] = v
		}
		r.Headers = h
	}
	return r
}
