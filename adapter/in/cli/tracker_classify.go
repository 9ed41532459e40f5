package cli

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"tracker_server/config"
	"tracker_server/core/domain"
	"tracker_server/core/service/attribution"
	"tracker_server/core/service/classification"
)

var (
	classifyURL           string
	classifyReferrer      string
	classifySiteHost      string
	classifyPriorReferrer string
	classifyCampaign      string
	classifyModel         string
	classifyHostMatch     string
	classifyRules         string
	classifyTrace         bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Resolve attribution for a single page view",
	Long: `Runs the resolver for one landing URL and referrer without storing anything,
and prints the resulting values and store writes as JSON.`,
	Example: `  tracker classify --url 'https://shop.example.com/?gclid=x' --referrer https://www.google.com/`,
	RunE:    runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&classifyURL, "url", "", "landing page URL")
	f.StringVar(&classifyReferrer, "referrer", "", "Referer header value")
	f.StringVar(&classifySiteHost, "site-host", "", "site host (defaults to the URL host)")
	f.StringVar(&classifyPriorReferrer, "prior-referrer", "", "referrer already stored for the visitor")
	f.StringVar(&classifyCampaign, "campaign-default", domain.CampaignNone, "campaign value when none is found")
	f.StringVar(&classifyModel, "model", string(domain.ModelHybrid), "attribution model (hybrid or first-touch)")
	f.StringVar(&classifyHostMatch, "host-match", string(domain.HostMatchSubstring), "host matching (substring or label)")
	f.StringVar(&classifyRules, "rules", "", "YAML rules file (defaults to built-in tables)")
	f.BoolVar(&classifyTrace, "trace", false, "include the resolution trace")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(classifyURL) == "" && strings.TrimSpace(classifyReferrer) == "" {
		return fmt.Errorf("at least one of --url or --referrer is required")
	}

	model := domain.AttributionModel(strings.ToLower(classifyModel))
	switch model {
	case domain.ModelHybrid, domain.ModelFirstTouch:
	default:
		return fmt.Errorf("unknown model %q", classifyModel)
	}

	hostMatch := domain.HostMatchMode(strings.ToLower(classifyHostMatch))
	switch hostMatch {
	case domain.HostMatchSubstring, domain.HostMatchLabel:
	default:
		return fmt.Errorf("unknown host match %q", classifyHostMatch)
	}

	rules := classification.DefaultRuleSet()
	if classifyRules != "" {
		raw, err := config.LoadDomainRules(classifyRules)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		normalized, v := config.NormalizeAndValidateRules(raw)
		for _, w := range v.Warnings {
			cmd.PrintErrf("warning: %s\n", w)
		}
		if err := v.Err(); err != nil {
			return err
		}
		rules = normalized
	}

	resolver := attribution.NewResolver(rules, domain.Policy{
		EmptyCampaign: classifyCampaign,
		Model:         model,
		HostMatch:     hostMatch,
	})

	var prior *domain.VisitorRecord
	if classifyPriorReferrer != "" {
		prior = &domain.VisitorRecord{Referrer: classifyPriorReferrer}
	}

	res := resolver.Resolve(attribution.ResolveInput{
		RequestURL: classifyURL,
		SiteHost:   classifySiteHost,
		Referrer:   classifyReferrer,
		Prior:      prior,
	})
	if !classifyTrace {
		res.Trace = nil
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
