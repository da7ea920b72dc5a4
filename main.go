package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/banquet-labs/banquet/featurestore"
	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/jsonutil"
	"github.com/banquet-labs/banquet/lib/kafkalib"
	"github.com/banquet-labs/banquet/lib/logger"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/processes/consumer"
	"github.com/banquet-labs/banquet/processes/pool"
	"github.com/banquet-labs/banquet/server"
)

const usage = `usage: banquet -c config.yaml [-f definitions.yaml] <command>

commands:
  plan                        show what apply would change
  apply                       reconcile the registry with the definitions file
  materialize <start> <end>   load features over [start, end) into the online store
  materialize-incremental     materialize from where the last run ended
  serve                       run the feature server
  ingest                      consume pushed rows from kafka or sqs
  push <source> <rows.json>   push rows through a push source
  list                        print the registered objects
  teardown                    remove online state and delete the registry`

func main() {
	settings, err := config.LoadSettings(os.Args[1:], true)
	if err != nil {
		logger.Fatal("Failed to load settings", slog.Any("err", err))
	}

	_logger, usedSentry := logger.NewLogger(settings.VerboseLogging, settings.Config.Reporting.Sentry)
	slog.SetDefault(_logger)
	if usedSentry {
		defer logger.Flush()
	}

	if len(settings.Positional) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fs, err := featurestore.New(ctx, settings.Config)
	if err != nil {
		logger.Fatal("Failed to build the feature store", slog.Any("err", err))
	}

	command, args := settings.Positional[0], settings.Positional[1:]
	if err = run(ctx, fs, settings, command, args); err != nil {
		logger.Fatal("Command failed", slog.String("command", command), slog.Any("err", err))
	}
}

func run(ctx context.Context, fs *featurestore.FeatureStore, settings *config.Settings, command string, args []string) error {
	switch command {
	case "plan":
		contents, err := loadDefinitions(settings)
		if err != nil {
			return err
		}

		diff, err := fs.Plan(ctx, contents, false)
		if err != nil {
			return err
		}

		fmt.Println(diff.String())
		return nil
	case "apply":
		contents, err := loadDefinitions(settings)
		if err != nil {
			return err
		}

		diff, err := fs.Apply(ctx, contents, false)
		if err != nil {
			return err
		}

		fmt.Println(diff.String())
		return nil
	case "materialize":
		if len(args) < 2 {
			return fmt.Errorf("materialize needs a start and an end timestamp")
		}

		start, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return fmt.Errorf("invalid start: %w", err)
		}

		end, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			return fmt.Errorf("invalid end: %w", err)
		}

		return fs.Materialize(ctx, args[2:], start, end)
	case "materialize-incremental":
		return fs.MaterializeIncremental(ctx, args, time.Now().UTC())
	case "serve":
		slog.Info("Starting the feature server",
			slog.String("host", settings.Config.FeatureServer.Host),
			slog.Int("port", settings.Config.FeatureServer.Port),
		)
		return server.NewServer(fs, settings.Config.FeatureServer).Serve(ctx)
	case "ingest":
		return ingest(ctx, fs, settings.Config.Stream)
	case "push":
		return push(ctx, fs, args)
	case "list":
		return list(ctx, fs)
	case "teardown":
		return fs.Teardown(ctx)
	default:
		return fmt.Errorf("unknown command: %q", command)
	}
}

// push reads a JSON array of rows and pushes it through the named source.
// Usage: push <source> <rows.json> [online|offline|online_and_offline]
func push(ctx context.Context, fs *featurestore.FeatureStore, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("push needs a source name and a rows file")
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}

	var rows []map[string]any
	if err = jsonutil.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse rows: %w", err)
	}

	mode := featurestore.PushModeOnline
	if len(args) > 2 {
		mode = featurestore.PushMode(args[2])
	}

	return fs.Push(ctx, args[0], rows, mode)
}

func loadDefinitions(settings *config.Settings) (models.RepoContents, error) {
	if settings.DefinitionsPath == "" {
		return models.RepoContents{}, fmt.Errorf("a definitions file is required, pass -f")
	}

	data, err := os.ReadFile(settings.DefinitionsPath)
	if err != nil {
		return models.RepoContents{}, fmt.Errorf("failed to read definitions: %w", err)
	}

	return models.ParseRepoContents(data)
}

func ingest(ctx context.Context, fs *featurestore.FeatureStore, streamCfg *config.Stream) error {
	if streamCfg == nil {
		return fmt.Errorf("ingest needs a stream section in the config")
	}

	if streamCfg.SQS != nil {
		ingestor, err := consumer.NewSQSIngestor(ctx, fs, *streamCfg.SQS)
		if err != nil {
			return err
		}

		slog.Info("Starting SQS ingestion", slog.String("queue", streamCfg.SQS.QueueURL))
		return ingestor.Run(ctx)
	}

	topicSources, err := consumer.TopicSources(ctx, fs)
	if err != nil {
		return err
	}

	topics := slices.Sorted(maps.Keys(topicSources))
	kafkaConsumer, err := kafkalib.NewConsumer(ctx, *streamCfg.Kafka, topics)
	if err != nil {
		return err
	}
	defer kafkaConsumer.Close()

	slog.Info("Starting Kafka ingestion",
		slog.String("kafka", streamCfg.Kafka.String()),
		slog.Any("topics", topics),
	)

	ingestor := consumer.NewIngestor(fs, kafkaConsumer, *streamCfg, topicSources)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.StartPool(ctx, time.Duration(streamCfg.FlushIntervalSeconds)*time.Second, ingestor.Flush)
	}()

	err = ingestor.Run(ctx)
	wg.Wait()
	return err
}

func list(ctx context.Context, fs *featurestore.FeatureStore) error {
	entities, err := fs.Registry().ListEntities(ctx)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		fmt.Printf("entity\t%s\n", entity.Name)
	}

	sources, err := fs.Registry().ListDataSources(ctx)
	if err != nil {
		return err
	}
	for _, source := range sources {
		fmt.Printf("data source\t%s\n", source.Name)
	}

	views, err := fs.Registry().ListFeatureViews(ctx)
	if err != nil {
		return err
	}
	for _, view := range views {
		fmt.Printf("feature view\t%s\n", view.Name)
	}

	odfvs, err := fs.Registry().ListOnDemandFeatureViews(ctx)
	if err != nil {
		return err
	}
	for _, odfv := range odfvs {
		fmt.Printf("on demand feature view\t%s\n", odfv.Name)
	}

	services, err := fs.Registry().ListFeatureServices(ctx)
	if err != nil {
		return err
	}
	for _, service := range services {
		fmt.Printf("feature service\t%s\n", service.Name)
	}

	return nil
}
