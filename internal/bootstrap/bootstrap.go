// Package bootstrap builds the portal components shared by the server and
// the command line tools from the loaded configuration.
package bootstrap

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"geoincra-portal/internal/automation"
	"geoincra-portal/internal/budget"
	"geoincra-portal/internal/common/auth"
	"geoincra-portal/internal/common/config"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/observability"
	"geoincra-portal/internal/documents"
	"geoincra-portal/internal/municipality"
	"geoincra-portal/internal/proposal"
	"geoincra-portal/internal/requirements"
	"geoincra-portal/internal/server"
	"geoincra-portal/internal/session"
	"geoincra-portal/internal/submission"
	"geoincra-portal/internal/timeline"
	"geoincra-portal/internal/wizard"
)

// APIClient returns the portal client authenticated by the configured provider.
func APIClient(cfg *config.Config) (*apihttp.Client, error) {
	provider, err := auth.NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return apihttp.NewClient(cfg.Portal.BaseURL, config.GetDuration(cfg.Portal.Timeout), provider), nil
}

// Resolver selects the municipality backend. es may be nil unless the
// elasticsearch resolver is configured.
func Resolver(cfg *config.Config, client *apihttp.Client, es *elasticsearch.Client) (municipality.Resolver, error) {
	switch cfg.Municipality.Resolver {
	case config.ResolverHTTP, "":
		return municipality.NewHTTPResolver(client), nil
	case config.ResolverElasticsearch:
		if es == nil {
			return nil, fmt.Errorf("elasticsearch resolver configured without a client")
		}
		return municipality.NewElasticsearchResolver(es, cfg.Municipality.Index), nil
	default:
		return nil, fmt.Errorf("unknown municipality resolver %q", cfg.Municipality.Resolver)
	}
}

// Cache wraps resolver with the process wide lookup cache. store may be nil.
func Cache(cfg *config.Config, resolver municipality.Resolver, store municipality.SharedStore, log logger.Logger) *municipality.Cache {
	opts := []municipality.CacheOption{
		municipality.WithCacheLogger(log),
		municipality.WithMinQueryLength(cfg.Municipality.MinQueryLength),
	}
	if cfg.Municipality.LookupTimeout > 0 {
		opts = append(opts, municipality.WithLookupTimeout(config.GetDuration(cfg.Municipality.LookupTimeout)))
	}
	if store != nil {
		opts = append(opts, municipality.WithSharedStore(store))
	}
	return municipality.NewCache(resolver, opts...)
}

// Wizards holds what every wizard controller is built with.
type Wizards struct {
	Client *apihttp.Client
	Obs    *observability.Observability
	Logger logger.Logger
	// Hooks run after a successful budget submission.
	Hooks []wizard.SubmittedHook
}

func (w Wizards) submissionOptions() []submission.Option {
	opts := []submission.Option{submission.WithLogger(w.Logger)}
	if w.Obs != nil {
		opts = append(opts, submission.WithObservability(w.Obs))
	}
	return opts
}

// BudgetSubmitter posts budget drafts with the contract check.
func (w Wizards) BudgetSubmitter() *submission.Adapter {
	return budget.NewSubmitter(w.Client, w.submissionOptions()...)
}

// Budget builds a budget wizard for targetID.
func (w Wizards) Budget(targetID string) *wizard.Controller {
	opts := []wizard.Option{wizard.WithTarget(targetID), wizard.WithLogger(w.Logger)}
	for _, h := range w.Hooks {
		opts = append(opts, wizard.OnSubmitted(h))
	}
	return budget.New(w.BudgetSubmitter(), opts...)
}

// Proposal builds an empty proposal wizard for targetID.
func (w Wizards) Proposal(targetID string) *wizard.Controller {
	return proposal.New(proposal.NewSubmitter(w.Client, w.submissionOptions()...), nil,
		wizard.WithTarget(targetID), wizard.WithLogger(w.Logger))
}

// Register adds both wizard kinds to m.
func (w Wizards) Register(m *session.Manager) {
	m.Register(budget.Kind, w.Budget)
	m.Register(proposal.Kind, w.Proposal)
}

// Sessions builds the session manager. repo may be nil.
func Sessions(cfg *config.Config, w Wizards, repo *session.PostgresRepository, log logger.Logger) *session.Manager {
	opts := []session.Option{
		session.WithLogger(log),
		session.WithIdleTimeout(config.GetDuration(cfg.Sessions.IdleTimeout)),
	}
	if repo != nil {
		opts = append(opts, session.WithRepository(repo))
	}
	m := session.NewManager(opts...)
	w.Register(m)
	return m
}

// Portal builds the clients relayed by the server's project routes.
func Portal(client *apihttp.Client, log logger.Logger) *server.Portal {
	return &server.Portal{
		History:      proposal.NewHistory(client, log),
		Requirements: requirements.NewClient(client, log),
		Timeline:     timeline.NewClient(client),
		Documents:    documents.NewClient(client, log),
		Automations:  automation.NewClient(client, log),
	}
}
