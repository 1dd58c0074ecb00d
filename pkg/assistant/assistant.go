package assistant

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/publift/go-stageflow/pkg/pipeline"
	"github.com/publift/go-stageflow/pkg/pipeline/model"
	"github.com/publift/go-stageflow/pkg/tool"
	"github.com/publift/go-stageflow/pkg/tool/cache"
	"github.com/publift/go-stageflow/pkg/tool/ratelimit"
)

// Stage names, in run order.
const (
	StageRepoAnalysis       = "repo-analysis"
	StageMetadataRecommend  = "metadata-recommendations"
	StageContentImprovement = "content-improvements"
	StageReview             = "review"
	StageFactCheck          = "fact-check"
)

// Resource names used for rate limiting and cache keys. The keyword
// extractor runs locally and carries no limit.
const (
	ResourceRepository = "repository-reader"
	ResourceWebSearch  = "web-search"
	ResourceKeywords   = "keyword-extractor"
	ResourceRetriever  = "doc-retriever"
)

var (
	ErrRepoMustBeSet = errors.New("repository URL must be set")
	ErrToolMustBeSet = errors.New("tool call function must be set")
)

// Toolset holds the injected call functions for the four external tools.
type Toolset struct {
	ReadRepository  func(ctx context.Context, repoURL string) (any, error)
	SearchWeb       func(ctx context.Context, query string) (any, error)
	ExtractKeywords func(ctx context.Context, text string) (any, error)
	RetrieveDocs    func(ctx context.Context, topic string) (any, error)
}

func (ts Toolset) validate() error {
	if ts.ReadRepository == nil {
		return errors.Wrap(ErrToolMustBeSet, "read repository")
	}
	if ts.SearchWeb == nil {
		return errors.Wrap(ErrToolMustBeSet, "search web")
	}
	if ts.ExtractKeywords == nil {
		return errors.Wrap(ErrToolMustBeSet, "extract keywords")
	}
	if ts.RetrieveDocs == nil {
		return errors.Wrap(ErrToolMustBeSet, "retrieve docs")
	}

	return nil
}

// Settings configures one assistant pipeline. Built once, passed to New,
// never read from the environment.
type Settings struct {
	Pipeline model.Settings
	Limits   map[string]ratelimit.Limit
	Tool     tool.Config
	CacheTTL time.Duration
	Policies map[string]model.FailurePolicy
}

// DefaultSettings mirrors the production deployment defaults: a shared
// 25 calls/minute budget per remote resource, 3 tool retries with 1s
// exponential backoff, 30s per call.
func DefaultSettings() Settings {
	return Settings{
		Pipeline: model.Settings{
			StageRetries: 1,
			Timeout:      10 * time.Minute,
		},
		Limits: map[string]ratelimit.Limit{
			ResourceRepository: {Calls: 25, Window: time.Minute},
			ResourceWebSearch:  {Calls: 25, Window: time.Minute},
			ResourceRetriever:  {Calls: 25, Window: time.Minute},
		},
		Tool: tool.Config{
			MaxRetries:  3,
			CallTimeout: 30 * time.Second,
			Backoff: tool.Backoff{
				Base:   time.Second,
				Max:    30 * time.Second,
				Jitter: 0.2,
			},
		},
		CacheTTL: 15 * time.Minute,
		Policies: map[string]model.FailurePolicy{
			StageRepoAnalysis:       model.AbortPipeline,
			StageMetadataRecommend:  model.SkipAndContinue,
			StageContentImprovement: model.RetryThenSkip,
			StageReview:             model.SkipAndContinue,
			StageFactCheck:          model.SkipAndContinue,
		},
	}
}

// New builds the five-stage pipeline for one repository. The capability
// table constructed here is the only place a stage gets its invokers:
// the set of tools each stage may call is fixed before the run starts.
func New(repoURL string, ts Toolset, settings Settings, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if repoURL == "" {
		return nil, ErrRepoMustBeSet
	}
	if err := ts.validate(); err != nil {
		return nil, err
	}

	limiter, err := ratelimit.New(settings.Limits)
	if err != nil {
		return nil, errors.Wrap(err, "unable to build rate limiter")
	}
	memo := cache.New()

	invokers := make(map[string]*tool.Invoker, 4)
	for _, resource := range []string{ResourceRepository, ResourceWebSearch, ResourceKeywords, ResourceRetriever} {
		invokers[resource] = tool.New(settings.Tool, limiter, memo)
	}

	// capability table: stage name -> the invokers its worker may use.
	capabilities := map[string]map[string]*tool.Invoker{
		StageRepoAnalysis:       {ResourceRepository: invokers[ResourceRepository]},
		StageMetadataRecommend:  {ResourceWebSearch: invokers[ResourceWebSearch], ResourceKeywords: invokers[ResourceKeywords]},
		StageContentImprovement: {ResourceRetriever: invokers[ResourceRetriever]},
		StageReview:             {ResourceRetriever: invokers[ResourceRetriever]},
		StageFactCheck:          {ResourceRepository: invokers[ResourceRepository]},
	}

	ttl := settings.CacheTTL
	stages := []model.StageSpec{
		{
			Name:   StageRepoAnalysis,
			Worker: repoAnalysisWorker(repoURL, ts, capabilities[StageRepoAnalysis], ttl),
			Policy: policyFor(settings, StageRepoAnalysis),
		},
		{
			Name:     StageMetadataRecommend,
			Requires: []string{StageRepoAnalysis},
			Worker:   metadataWorker(ts, capabilities[StageMetadataRecommend], ttl),
			Policy:   policyFor(settings, StageMetadataRecommend),
		},
		{
			Name:     StageContentImprovement,
			Requires: []string{StageRepoAnalysis},
			Worker:   contentWorker(ts, capabilities[StageContentImprovement], ttl),
			Policy:   policyFor(settings, StageContentImprovement),
		},
		{
			Name:     StageReview,
			Requires: []string{StageContentImprovement},
			Worker:   reviewWorker(ts, capabilities[StageReview], ttl),
			Policy:   policyFor(settings, StageReview),
		},
		{
			Name:     StageFactCheck,
			Requires: []string{StageRepoAnalysis, StageContentImprovement},
			Worker:   factCheckWorker(repoURL, ts, capabilities[StageFactCheck], ttl),
			Policy:   policyFor(settings, StageFactCheck),
		},
	}

	return pipeline.New(settings.Pipeline, stages, opts...)
}

func policyFor(settings Settings, stage string) model.FailurePolicy {
	if policy, ok := settings.Policies[stage]; ok {
		return policy
	}

	return model.SkipAndContinue
}
