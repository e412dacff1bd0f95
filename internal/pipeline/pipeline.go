package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"aichat/internal/config"
	"aichat/internal/prompt"
	"aichat/internal/quota"
	"aichat/internal/reply"
	"aichat/internal/retrieval"
	"aichat/internal/scope"
	"aichat/internal/util"
	"aichat/pkg/ai"
)

// Settings is the per-request snapshot of chat configuration. It is
// assembled once at the top of Send and passed to every component, so no
// component reads configuration on its own.
type Settings struct {
	Provider         string
	APIKey           string
	BaseURL          string
	SystemPrompt     string
	AllowPattern     string
	RedactPII        bool
	DocsFolder       string
	AnswerOnlyFromDocs bool
	RetrievalStoreID string
	Temperature      float64
	DefaultMaxTokens int
	RequestTimeout   time.Duration
	QuestionMaxLen   int
	AnswerMaxLen     int
	Retrieval        retrieval.Limits
}

// SettingsFromConfig projects the service configuration into a request
// settings snapshot.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		Provider:           cfg.Provider,
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		SystemPrompt:       cfg.SystemPrompt,
		AllowPattern:       cfg.AllowPattern,
		RedactPII:          cfg.RedactPII,
		DocsFolder:         cfg.DocsFolder,
		AnswerOnlyFromDocs: cfg.AnswerOnlyFromDocs,
		RetrievalStoreID:   cfg.RetrievalStoreID,
		Temperature:        cfg.Temperature,
		DefaultMaxTokens:   cfg.MaxOutputTokens,
		RequestTimeout:     cfg.RequestTimeout(),
		QuestionMaxLen:     cfg.QuestionMaxLen,
		AnswerMaxLen:       cfg.AnswerMaxLen,
		Retrieval: retrieval.Limits{
			MaxFiles:        cfg.RetrievalMaxFiles,
			MaxPagesPerFile: cfg.RetrievalMaxPagesPerFile,
			MaxHits:         cfg.RetrievalMaxHits,
			MaxRuntime:      cfg.RetrievalMaxRuntime(),
		},
	}
}

// Request is one inbound chat message. Never persisted.
type Request struct {
	IdentityID string
	ClientIP   string
	Question   string
	Model      string
}

// Result is the wire reply for /ai_chat/send. Failures are signaled in OK,
// not via HTTP status.
type Result struct {
	OK    bool              `json:"ok"`
	Reply string            `json:"reply"`
	UI    *reply.Structured `json:"ui,omitempty"`
}

// ModelInfo is one entry of the /ai_chat/models response.
type ModelInfo struct {
	ModelName       string `json:"model_name"`
	PromptLimit     int    `json:"prompt_limit"`
	TokensPerPrompt int    `json:"tokens_per_prompt"`
}

// Throttle is the burst limiter the pipeline consults first.
type Throttle interface {
	Allow(key string) bool
}

// GeneratorFactory builds the provider adapter for a settings snapshot.
type GeneratorFactory func(Settings) (ai.Generator, error)

// Config wires the pipeline's collaborators.
type Config struct {
	Throttle  Throttle
	Store     quota.Store
	Retriever *retrieval.Retriever
	Settings  func() Settings
	Generator GeneratorFactory
	Today     func() string
}

// Pipeline is the send-message orchestrator: a fixed sequence of gates in
// front of one provider call. Every gate short-circuits with a user-visible
// reply; quota is committed only after a successful reply.
type Pipeline struct {
	throttle  Throttle
	directory *quota.Directory
	ledger    *quota.Ledger
	retriever *retrieval.Retriever
	settings  func() Settings
	generator GeneratorFactory
}

// New constructs the pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("quota store required")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings source required")
	}
	retriever := cfg.Retriever
	if retriever == nil {
		retriever = retrieval.New(nil)
	}
	generator := cfg.Generator
	if generator == nil {
		generator = defaultGenerator
	}
	return &Pipeline{
		throttle:  cfg.Throttle,
		directory: quota.NewDirectory(cfg.Store),
		ledger:    quota.NewLedger(cfg.Store, cfg.Today),
		retriever: retriever,
		settings:  cfg.Settings,
		generator: generator,
	}, nil
}

func defaultGenerator(st Settings) (ai.Generator, error) {
	switch st.Provider {
	case config.ProviderGemini:
		return ai.NewGeminiClient(st.APIKey, st.BaseURL)
	case config.ProviderOpenAI:
		return ai.NewOpenAIClient(st.APIKey, st.BaseURL)
	default:
		return nil, fmt.Errorf("unknown provider %q", st.Provider)
	}
}

// CanLoad reports whether the chat widget should render for this identity.
func (p *Pipeline) CanLoad(identityID string) bool {
	rec, err := p.directory.Authorize(identityID)
	if err != nil {
		slog.Error("can_load authorization lookup failed",
			"identity", util.HashIdentity(identityID), "err", err)
		return false
	}
	return rec != nil
}

// Models lists the identity's active model limits plus the default model.
// The boolean reports whether the identity is authorized at all: an
// authorized identity whose grants are all inactive gets (empty, "", true),
// not a refusal.
func (p *Pipeline) Models(identityID string) ([]ModelInfo, string, bool) {
	rec, err := p.directory.Authorize(identityID)
	if err != nil || rec == nil {
		return nil, "", false
	}
	models := make([]ModelInfo, 0, len(rec.Models))
	for _, limit := range rec.Models {
		if !limit.Active {
			continue
		}
		models = append(models, ModelInfo{
			ModelName:       limit.ModelName,
			PromptLimit:     limit.PromptLimit,
			TokensPerPrompt: limit.TokensPerPrompt,
		})
	}
	defaultModel := ""
	if def := p.directory.ResolveModel(rec, ""); def != nil {
		defaultModel = def.ModelName
	}
	return models, defaultModel, true
}

// Send runs one chat message through the full gate sequence. It never
// panics outward and never returns an error: every failure mode becomes a
// {ok:false, reply} result.
func (p *Pipeline) Send(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	hashed := util.HashIdentity(req.IdentityID)
	step := func(name, outcome string) {
		slog.Info("chat step",
			"identity", hashed,
			"step", name,
			"outcome", outcome,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("chat pipeline panic", "identity", hashed, "panic", rec)
			res = Result{OK: false, Reply: msgInternalError}
		}
	}()

	// 1. Burst throttle. Fail-open by design; never consults anything else.
	if p.throttle != nil && !p.throttle.Allow(throttleKey(req)) {
		step("throttle", "denied")
		return Result{OK: false, Reply: msgSlowDown}
	}

	// 2. Identity. Anonymous visitors are told to log in, not refused.
	if strings.TrimSpace(req.IdentityID) == "" {
		step("identify", "anonymous")
		return Result{OK: false, Reply: msgLoginRequired}
	}

	st := p.settings()

	// 3. Input validation.
	question := strings.TrimSpace(req.Question)
	if question == "" {
		step("validate", "empty")
		return Result{OK: false, Reply: msgEmptyMessage}
	}
	if st.QuestionMaxLen > 0 && utf8.RuneCountInString(question) > st.QuestionMaxLen {
		step("validate", "too_long")
		return Result{OK: false, Reply: msgMessageTooLong}
	}

	// 4. Authorization. Lookup errors deny; this is access control.
	rec, err := p.directory.Authorize(req.IdentityID)
	if err != nil {
		slog.Error("authorization lookup failed", "identity", hashed, "err", err)
		step("authorize", "error")
		return Result{OK: false, Reply: msgNotAllowed}
	}
	if rec == nil {
		step("authorize", "denied")
		return Result{OK: false, Reply: msgNotAllowed}
	}

	// 5. Configuration check.
	gen, genErr := p.generator(st)
	if strings.TrimSpace(st.APIKey) == "" || genErr != nil {
		slog.Warn("ai backend not configured", "provider", st.Provider, "err", genErr)
		step("configure", "missing")
		return Result{OK: false, Reply: msgNotConfigured}
	}

	// 6. Scope check.
	if !scope.IsAllowed(question, st.AllowPattern, scope.DefaultEvalBudget) {
		step("scope", "rejected")
		return Result{OK: false, Reply: msgOutOfScope}
	}

	// 7. Model resolution. Strict: a requested model the identity was not
	// granted never falls back to another one.
	limit := p.directory.ResolveModel(rec, req.Model)
	if limit == nil {
		step("resolve_model", "unavailable")
		return Result{OK: false, Reply: msgModelNotAvailable}
	}

	// 8. Quota pre-check.
	if !p.ledger.CheckAllowed(req.IdentityID, limit.ModelName, limit.PromptLimit) {
		step("quota_check", "exhausted")
		return Result{OK: false, Reply: msgDailyLimitReached}
	}

	// 9. Redaction of the outbound text.
	outbound := scope.Redact(question, st.RedactPII)

	// 10. Retrieval. Local scan only when retrieval is not delegated to the
	// provider. Strict docs-only with zero hits answers without a provider
	// call at all.
	var hits []retrieval.Hit
	delegated := strings.TrimSpace(st.RetrievalStoreID) != ""
	if !delegated && st.DocsFolder != "" {
		hits = p.retriever.Search(st.DocsFolder, question, st.Retrieval)
		step("retrieve", fmt.Sprintf("hits=%d", len(hits)))
	}
	if st.AnswerOnlyFromDocs && !delegated && len(hits) == 0 {
		step("retrieve", "no_docs")
		return Result{OK: false, Reply: msgNoMatchingDocs}
	}

	// 11. Compose the system instruction.
	systemText := prompt.BuildSystemText(st.SystemPrompt, hits, st.AnswerOnlyFromDocs, delegated, st.AnswerMaxLen)

	// 12. Generate.
	maxTokens := limit.TokensPerPrompt
	if maxTokens <= 0 {
		maxTokens = st.DefaultMaxTokens
	}
	params := ai.Params{
		Model:           limit.ModelName,
		Temperature:     st.Temperature,
		MaxOutputTokens: maxTokens,
		Timeout:         st.RequestTimeout,
	}
	if delegated {
		params.RetrievalStoreID = st.RetrievalStoreID
	}
	raw, err := gen.Generate(ctx, systemText, outbound, params)
	if err != nil {
		slog.Error("provider call failed", "identity", hashed, "model", limit.ModelName, "err", err)
		step("generate", "failed")
		return Result{OK: false, Reply: msgUnavailable}
	}
	step("generate", "ok")

	// 13. Quota commit. Only now, so failed generations never charge.
	p.ledger.Increment(req.IdentityID, limit.ModelName)

	// 14. Normalize.
	ui := reply.Parse(raw, st.AnswerMaxLen)
	if strings.TrimSpace(ui.AnswerMD) == "" {
		ui.AnswerMD = msgNoAnswer
	}

	step("done", "ok")
	return Result{OK: true, Reply: ui.AnswerMD, UI: &ui}
}

func throttleKey(req Request) string {
	if req.IdentityID != "" {
		return req.IdentityID + "|" + req.ClientIP
	}
	return req.ClientIP
}
