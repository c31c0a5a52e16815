package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"voicecmd/internal/asr"
	"voicecmd/internal/audit"
	"voicecmd/internal/auth"
	"voicecmd/internal/catalog"
	"voicecmd/internal/config"
	"voicecmd/internal/domain"
	"voicecmd/internal/mapper"
	"voicecmd/internal/nlu"
	"voicecmd/internal/pipeline"
)

const version = "1.0.0"

var (
	audioPath     string
	language      string
	minConfidence float64
	pretty        bool
	outputPath    string
	verbose       bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "voicecmd",
	Short: "Voice command pipeline for console control",
	Long: `voicecmd turns a spoken or textual command into a validated,
authorized command record for the downstream console controller.

Catalogs and engines are configured through the same environment
variables the server uses (INTENTS_CONFIG, COMMANDS_CONFIG,
SCORER_MODE, ASR_MODE, ...).`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

var processCmd = &cobra.Command{
	Use:   "process [text]",
	Short: "Run one command through the pipeline and print the record",
	Args:  cobra.ArbitraryArgs,
	RunE:  runProcess,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog inspection commands",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load both catalog files and cross-check them",
	RunE:  runCatalogValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("voicecmd v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	processCmd.Flags().StringVar(&audioPath, "audio", "", "process an audio file instead of text")
	processCmd.Flags().StringVar(&language, "language", "", "language code for transcription")
	processCmd.Flags().Float64Var(&minConfidence, "confidence", 0, "minimum confidence override for this request")
	processCmd.Flags().BoolVar(&pretty, "pretty", false, "pretty print the record")
	processCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the record JSON to a file")

	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(processCmd, catalogCmd, versionCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && audioPath == "" {
		return fmt.Errorf("provide command text or --audio")
	}

	coordinator, err := buildCoordinator()
	if err != nil {
		return err
	}

	opts := pipeline.Options{MinConfidence: minConfidence, Language: language}
	var record domain.CommandRecord
	if audioPath != "" {
		audio, err := os.ReadFile(audioPath)
		if err != nil {
			return fmt.Errorf("read audio file: %w", err)
		}
		record, err = coordinator.ProcessAudio(cmd.Context(), audio, opts)
		if err != nil {
			return err
		}
	} else {
		record, err = coordinator.ProcessText(cmd.Context(), text, opts)
		if err != nil {
			return err
		}
	}

	out, err := marshalRecord(record)
	if err != nil {
		return err
	}
	if outputPath != "" {
		if err := os.WriteFile(outputPath, append(out, '\n'), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	fmt.Println(string(out))
	return nil
}

func runCatalogValidate(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	snap, err := catalog.Load(cfg.IntentsPath, cfg.CommandsPath)
	if err != nil {
		return err
	}
	fmt.Printf("catalogs consistent: %d intents, %d commands\n", snap.NumIntents(), snap.NumCommands())
	return nil
}

func buildCoordinator() (*pipeline.Coordinator, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}

	snap, err := catalog.Load(cfg.IntentsPath, cfg.CommandsPath)
	if err != nil {
		return nil, err
	}

	authorized := cfg.AuthorizedIntents
	if len(authorized) == 0 {
		authorized = snap.CommandNames()
	}
	threshold := cfg.ConfidenceThreshold
	policy := auth.NewPolicy(authorized, threshold)
	gate := auth.NewGate(policy, audit.NewSlogSink(logger), logger)

	scorer, err := nlu.NewScorer(nlu.ScorerConfig{
		Mode:    cfg.ScorerMode,
		BaseURL: cfg.ScorerBaseURL,
		Timeout: cfg.ScorerTimeout,
	})
	if err != nil {
		return nil, err
	}

	transcriber, err := asr.NewTranscriber(asr.Config{
		Mode:     cfg.ASRMode,
		BaseURL:  cfg.ASRBaseURL,
		Timeout:  cfg.ASRTimeout,
		MockText: cfg.ASRMockText,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.NewCoordinator(
		catalog.NewStore(snap),
		nlu.NewClassifier(scorer, cfg.FallbackFloor, logger),
		nlu.NewExtractor(),
		gate,
		mapper.NewAssembler(logger),
		transcriber,
		logger,
	), nil
}

func marshalRecord(record domain.CommandRecord) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(record, "", "  ")
	}
	return json.Marshal(record)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
