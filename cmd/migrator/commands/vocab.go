package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex/consumer"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/console"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/kafka"
)

func (c *CLI) newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Manage the controlled vocabularies used for validation",
	}
	cmd.AddCommand(c.newVocabLoadCmd())
	cmd.AddCommand(c.newVocabFollowCmd())
	cmd.AddCommand(c.newVocabSearchCmd())
	cmd.AddCommand(c.newVocabCheckCmd())
	cmd.AddCommand(c.newVocabTypesCmd())
	cmd.AddCommand(c.newVocabResetCacheCmd())
	return cmd
}

// catalogEntries reads the catalog files of types, or of every catalog type
// whose file exists when types is empty.
func (c *CLI) catalogEntries(types []string) (map[string][]vocabulary.Entry, error) {
	explicit := len(types) > 0
	if !explicit {
		types = vocabulary.DefaultCatalog.Types()
	}
	out := make(map[string][]vocabulary.Entry, len(types))
	for _, t := range types {
		name, err := vocabulary.DefaultCatalog.Filename(t)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(c.cfg.Vocabulary.DataDir, name)
		entries, err := vocabulary.ReadCatalogFile(path, t)
		if errors.Is(err, os.ErrNotExist) && !explicit {
			slog.Warn("vocabulary file missing, skipped", "type", t, "file", path)
			continue
		}
		if err != nil {
			return nil, err
		}
		out[t] = entries
	}
	return out, nil
}

func (c *CLI) newVocabLoadCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "load [types...]",
		Short: "Load catalog vocabularies into the vocabulary index",
		Long: "Reads the catalog files of the given vocabulary types (all of them by default) and " +
			"writes their entries to the configured index, or publishes them on the vocabulary feed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runVocabLoad(cmd.Context(), args, publish)
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "publish entries on the Kafka vocabulary feed instead of indexing them")
	return cmd
}

func (c *CLI) runVocabLoad(ctx context.Context, types []string, publish bool) error {
	byType, err := c.catalogEntries(types)
	if err != nil {
		return err
	}
	res := &resources{}
	defer res.Close()

	var write func(entries []vocabulary.Entry) error
	switch {
	case publish:
		producer := kafka.NewProducer(c.cfg.Kafka, c.cfg.Kafka.Topics.VocabularyUpdates)
		res.add(producer.Close)
		write = func(entries []vocabulary.Entry) error {
			events := make([]kafka.Event, len(entries))
			for i, e := range entries {
				events[i] = consumer.EventFor(e)
			}
			return producer.PublishBatch(ctx, events)
		}
	case c.cfg.Vocabulary.Index == "postgres":
		store, err := c.openStore(ctx, res)
		if err != nil {
			return err
		}
		write = func(entries []vocabulary.Entry) error {
			return store.Upsert(ctx, entries)
		}
	default:
		engine, err := c.openEngine(res, c.newMetrics(res))
		if err != nil {
			return err
		}
		write = engine.IndexAll
	}

	total := 0
	for _, t := range slices.Sorted(maps.Keys(byType)) {
		entries := byType[t]
		if err := write(entries); err != nil {
			return fmt.Errorf("loading vocabulary %s: %w", t, err)
		}
		total += len(entries)
		c.console.Sechof(console.Plain, "%-32s %5d entries", t, len(entries))
	}
	c.console.Sechof(console.Green, "%d entries of %d vocabularies loaded", total, len(byType))
	return nil
}

func (c *CLI) newVocabFollowCmd() *cobra.Command {
	var fromBeginning bool
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Index vocabulary updates from the Kafka feed until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runVocabFollow(cmd.Context(), fromBeginning)
		},
	}
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start at the oldest message when the group has no offsets")
	return cmd
}

func (c *CLI) runVocabFollow(ctx context.Context, fromBeginning bool) error {
	res := &resources{}
	defer res.Close()

	var indexer consumer.Indexer
	if c.cfg.Vocabulary.Index == "postgres" {
		store, err := c.openStore(ctx, res)
		if err != nil {
			return err
		}
		indexer = storeIndexer{ctx: ctx, store: store}
	} else {
		engine, err := c.openEngine(res, c.newMetrics(res))
		if err != nil {
			return err
		}
		engine.StartFlushLoop(ctx)
		indexer = engine
	}

	topic := c.cfg.Kafka.Topics.VocabularyUpdates
	kafkaConsumer := kafka.NewConsumer(c.cfg.Kafka, topic, fromBeginning, consumer.HandleMessage(indexer))
	slog.Info("following vocabulary feed",
		"topic", topic,
		"group", c.cfg.Kafka.ConsumerGroup,
		"index", c.cfg.Vocabulary.Index,
	)
	return consumer.New(kafkaConsumer).Start(ctx)
}

func (c *CLI) newVocabSearchCmd() *cobra.Command {
	var vocabType string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <text...>",
		Short: "Free-text search over the local vocabulary index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Vocabulary.Index != "local" {
				return fmt.Errorf("search needs the local vocabulary index, configured index is %s", c.cfg.Vocabulary.Index)
			}
			res := &resources{}
			defer res.Close()
			engine, err := c.openEngine(res, nil)
			if err != nil {
				return err
			}
			hits, err := engine.Search(strings.Join(args, " "), vocabType, limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				c.console.Secho("no matching vocabulary entries", console.Yellow)
				return nil
			}
			for _, h := range hits {
				c.console.Sechof(console.Plain, "%-32s %-24s %s", h.Entry.Type, h.Entry.Key, h.Entry.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&vocabType, "type", "t", "", "restrict results to one vocabulary type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	return cmd
}

func (c *CLI) newVocabCheckCmd() *cobra.Command {
	var sourceName string
	cmd := &cobra.Command{
		Use:   "check <type> <key>",
		Short: "Check that a key belongs to a vocabulary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := vocabulary.ParseSource(sourceName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res := &resources{}
			defer res.Close()
			v, err := c.buildValidator(ctx, res, c.newMetrics(res))
			if err != nil {
				return err
			}
			leaf := vocabulary.Leaf{Type: args[0], Source: source}
			err = v.HasKey(ctx, leaf, args[1])
			switch {
			case err == nil:
				c.console.Check(true, fmt.Sprintf("%s is a %s key (%s source)", args[1], args[0], source))
			case !apperrors.IsConfiguration(err) && errors.Is(err, apperrors.ErrVocabulary):
				c.console.Check(false, err.Error())
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&sourceName, "source", "s", "file", "vocabulary source: file or index")
	return cmd
}

func (c *CLI) newVocabTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the catalog vocabularies and their entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, t := range vocabulary.DefaultCatalog.Types() {
				name, _ := vocabulary.DefaultCatalog.Filename(t)
				entries, err := vocabulary.ReadCatalogFile(filepath.Join(c.cfg.Vocabulary.DataDir, name), t)
				switch {
				case errors.Is(err, os.ErrNotExist):
					c.console.Sechof(console.Yellow, "%-32s %-44s missing", t, name)
				case err != nil:
					c.console.Sechof(console.Red, "%-32s %-44s %v", t, name, err)
				default:
					c.console.Sechof(console.Plain, "%-32s %-44s %5d", t, name, len(entries))
				}
			}
			return nil
		},
	}
}

func (c *CLI) newVocabResetCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-cache",
		Short: "Forget every cached vocabulary key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := &resources{}
			defer res.Close()
			cache, err := c.openCache(res)
			if err != nil {
				return err
			}
			if err := cache.Reset(cmd.Context()); err != nil {
				return err
			}
			c.console.Secho(fmt.Sprintf("%s vocabulary cache reset", c.cfg.Vocabulary.Cache), console.Green)
			return nil
		},
	}
}
