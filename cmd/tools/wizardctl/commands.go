package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"geoincra-portal/internal/bootstrap"
	"geoincra-portal/internal/budget"
	"geoincra-portal/internal/common/config"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/proposal"
	"geoincra-portal/internal/wizard"
	gp "geoincra-portal/internal/workers/proposal/generate-proposal"
)

type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "wizardctl",
		Short:         "Validate, search and submit portal wizards",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: configs/config.yaml lookup)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newValidateCmd(), newSearchCmd(opts), newSubmitCmd(opts))
	return root
}

// =============================================================================
// VALIDATE
// =============================================================================

func newValidateCmd() *cobra.Command {
	var definitionPath string
	cmd := &cobra.Command{
		Use:   "validate <kind> <draft.json|->",
		Short: "Run every step rule of a wizard over a draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := definitionFor(args[0], definitionPath)
			if err != nil {
				return err
			}
			partial, err := readDraft(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			draft := def.InitialDraft()
			for k, v := range partial {
				draft[k] = v
			}

			failures := wizard.NewTableValidator(def).ValidateAll(draft)
			out := cmd.OutOrStdout()
			for _, step := range def.Steps {
				res, failed := failures[step.ID]
				if !failed {
					fmt.Fprintf(out, "step %d %-16s ok\n", step.ID, step.Label)
					continue
				}
				fmt.Fprintf(out, "step %d %-16s %d error(s)\n", step.ID, step.Label, len(res))
				fields := make([]string, 0, len(res))
				for f := range res {
					fields = append(fields, f)
				}
				sort.Strings(fields)
				for _, f := range fields {
					fmt.Fprintf(out, "  %s: %s\n", f, res[f])
				}
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d step(s) failed validation", len(failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&definitionPath, "definition", "", "YAML step table to use instead of the built-in one")
	return cmd
}

func definitionFor(kind, path string) (*wizard.Definition, error) {
	if path != "" {
		return wizard.LoadDefinition(path)
	}
	switch kind {
	case budget.Kind:
		return budget.Definition(), nil
	case proposal.Kind:
		return proposal.Definition(), nil
	default:
		return nil, fmt.Errorf("unknown wizard %q (expected %s or %s)", kind, budget.Kind, proposal.Kind)
	}
}

// =============================================================================
// SEARCH
// =============================================================================

func newSearchCmd(opts *options) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Look a municipality up through the configured resolver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			client, err := bootstrap.APIClient(cfg)
			if err != nil {
				return err
			}
			// the elasticsearch resolver needs a cluster client; the CLI
			// always goes through the portal API
			cfg.Municipality.Resolver = config.ResolverHTTP
			resolver, err := bootstrap.Resolver(cfg, client, nil)
			if err != nil {
				return err
			}
			cache := bootstrap.Cache(cfg, resolver, nil, log)

			if state == "" {
				state = cfg.Municipality.DefaultState
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), config.GetDuration(cfg.Portal.Timeout))
			defer cancel()
			return printJSON(cmd.OutOrStdout(), cache.Search(ctx, args[0], state))
		},
	}
	cmd.Flags().StringVar(&state, "uf", "", "state (defaults to municipality.default_state)")
	return cmd
}

// =============================================================================
// SUBMIT
// =============================================================================

func newSubmitCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "submit <projectId> <draft.json|->",
		Short: "Fill the budget wizard with a draft and submit it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			draft, err := readDraft(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			client, err := bootstrap.APIClient(cfg)
			if err != nil {
				return err
			}

			handler, err := gp.NewHandler(gp.HandlerOptions{
				Config:    &gp.Config{Enabled: true, MaxJobsActive: 1, Timeout: timeout},
				Submitter: bootstrap.Wizards{Client: client, Logger: log}.BudgetSubmitter(),
				Logger:    log,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			out, err := handler.Execute(ctx, &gp.Input{ProjectID: strings.TrimSpace(args[0]), Draft: draft})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "submission timeout")
	return cmd
}

func (o *options) load(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewNoOpLogger()
	if o.verbose {
		log = logger.NewZapAdapter(logger.New(cfg.Logging.Level, "console", "stderr"))
	}
	return cfg, log, nil
}

func readDraft(stdin io.Reader, path string) (map[string]interface{}, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var draft map[string]interface{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&draft); err != nil {
		return nil, fmt.Errorf("read draft %s: %w", path, err)
	}
	return draft, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
