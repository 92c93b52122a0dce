package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"privacy-score/backend/internal/scoring"
)

type scoreFlags struct {
	profile string
	out     string
	now     string
	compact bool
	verbose bool
}

// scoreOutput is the document written by the score command.
type scoreOutput struct {
	ComplianceScore float64        `json:"compliance_score"`
	Profile         string         `json:"profile"`
	Report          scoring.Report `json:"report"`
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score <analysis-file>",
		Short: "Compute the compliance score of an analysis document (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(args[0], f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.profile, "profile", scoring.DefaultProfile, "Weighting profile: "+strings.Join(scoring.ProfileNames(), " or "))
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.StringVar(&f.now, "now", "", "Evaluation instant as RFC3339 (default: current time)")
	flags.BoolVar(&f.compact, "compact", false, "Write single-line JSON")
	flags.BoolVar(&f.verbose, "verbose", false, "Log sub-scores to stderr")

	return cmd
}

func runScore(path string, f *scoreFlags, stdin io.Reader, stdout io.Writer) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading analysis document: %w", err)
	}

	opts := scoring.Options{Profile: f.profile}
	if f.now != "" {
		opts.Now, err = time.Parse(time.RFC3339, f.now)
		if err != nil {
			return fmt.Errorf("invalid --now: %w", err)
		}
	}
	if f.verbose {
		log := logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
		opts.Logger = log
	}

	doc, err := scoring.DecodeDocument(data)
	if err != nil {
		return err
	}
	scorer, err := scoring.NewScorer(opts)
	if err != nil {
		return err
	}
	report, err := scorer.Score(scoring.UnwrapDocument(doc))
	if err != nil {
		return err
	}

	out := scoreOutput{
		ComplianceScore: report.ComplianceScore,
		Profile:         report.Profile,
		Report:          report,
	}
	var encoded []byte
	if f.compact {
		encoded, err = json.Marshal(out)
	} else {
		encoded, err = json.MarshalIndent(out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	encoded = append(encoded, '\n')

	if f.out == "" {
		_, err = stdout.Write(encoded)
		return err
	}
	if err := os.WriteFile(f.out, encoded, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in weighting profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProfiles(cmd.OutOrStdout())
		},
	}
}

func listProfiles(w io.Writer) error {
	for _, name := range scoring.ProfileNames() {
		p, err := scoring.LoadProfile(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
		for _, dim := range p.Dimensions() {
			fmt.Fprintf(w, "  %-13s %.2f\n", dim, p.Weights[dim])
		}
	}
	return nil
}
