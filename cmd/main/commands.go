package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"ai-zoo-bot/pkg/config"
	"ai-zoo-bot/pkg/db"
	"ai-zoo-bot/pkg/delay"
	"ai-zoo-bot/pkg/discordio"
	"ai-zoo-bot/pkg/health"
	"ai-zoo-bot/pkg/llm"
	"ai-zoo-bot/pkg/notion"
	"ai-zoo-bot/pkg/schedule"
	"ai-zoo-bot/pkg/util"
	"ai-zoo-bot/pkg/zoo"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errPrimaryNotRunning = errors.New("primary bot is not running")

type botKind int

const (
	primaryBot botKind = iota
	secondaryBot
)

type botSpec struct {
	kind     botKind
	name     string
	tokenKey string
	token    string
	policy   zoo.Policy
}

func (a *app) spec(kind botKind) botSpec {
	if kind == secondaryBot {
		return botSpec{
			kind:     secondaryBot,
			name:     a.cfg.SecondaryName,
			tokenKey: "DISCORD_TOKEN_BOT2",
			token:    a.cfg.SecondaryToken,
			policy:   zoo.NewProbability(a.cfg.ResponseProbability),
		}
	}
	return botSpec{
		kind:     primaryBot,
		name:     a.cfg.PrimaryName,
		tokenKey: "DISCORD_TOKEN_BOT1",
		token:    a.cfg.PrimaryToken,
		policy:   zoo.Always{},
	}
}

func (a *app) botCmd(use string, short string, kind botKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBots(cmd.Context(), a.spec(kind))
		},
	}
	if kind == primaryBot {
		a.scheduleFlag(cmd)
	}
	return cmd
}

func (a *app) allCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Runs the primary and the secondary bot together",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBots(cmd.Context(), a.spec(primaryBot), a.spec(secondaryBot))
		},
	}
	a.scheduleFlag(cmd)
	return cmd
}

func (a *app) scheduleFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&a.schedule, "schedule", false, "post greetings on the SCHEDULE cron specs through the running primary bot")
}

func (a *app) scheduledCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduled [message...]",
		Short: "Posts the given message, or a greeting for the time of day, and exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			sender, closeStore, err := a.sender(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			_, err = sender.Send(cmd.Context(), args)
			return err
		},
	}
}

func (a *app) cronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Posts greetings on the SCHEDULE cron specs until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sender, closeStore, err := a.sender(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			location, err := time.LoadLocation(a.cfg.Timezone)
			if err != nil {
				return err
			}
			runner, err := schedule.NewRunner(location, a.cfg.ScheduleSpecs(), func(ctx context.Context) error {
				_, err := sender.Send(ctx, nil)
				return err
			})
			if err != nil {
				return err
			}
			return runner.Run(cmd.Context())
		},
	}
}

func (a *app) charactersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "characters",
		Short: "Lists the characters found in the Notion database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			characters, err := a.notionService().Characters(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(characters) == 0 {
				fmt.Fprintln(out, "No characters found.")
				return nil
			}
			fmt.Fprintf(out, "Found %d characters:\n", len(characters))
			for _, c := range characters {
				fmt.Fprintf(out, "- %s (model: %s)\n", c.Name, c.ModelOrDefault())
				if c.Personality != "" {
					fmt.Fprintf(out, "    personality: %s\n", c.Personality)
				}
				if c.SpeakingStyle != "" {
					fmt.Fprintf(out, "    speaking style: %s\n", c.SpeakingStyle)
				}
				if len(c.Interests) != 0 {
					fmt.Fprintf(out, "    interests: %s\n", strings.Join(c.Interests, ", "))
				}
			}
			return nil
		},
	}
}

func (a *app) runBots(ctx context.Context, specs ...botSpec) error {
	for _, spec := range specs {
		if err := config.Require(spec.tokenKey, spec.token); err != nil {
			return err
		}
	}
	if a.cfg.ChannelID == 0 {
		slog.Warn("zoo: CHANNEL_ID is not set, bots will answer in every channel")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	characters := a.notionService()
	generator := llm.New(llm.Options{
		OpenAIKey:         a.cfg.OpenAIKey,
		AnthropicKey:      a.cfg.AnthropicKey,
		MaxTokens:         a.cfg.MaxTokenLimit,
		RequestsPerSecond: a.cfg.LLMRequestsPerSecond,
		HTTPClient:        util.NewLLMClient(),
	})
	pacer := delay.Pacer{MinSeconds: a.cfg.MinResponseDelay, MaxSeconds: a.cfg.MaxResponseDelay}

	eg, ctx := errgroup.WithContext(ctx)
	var primary atomic.Pointer[zoo.Bot]
	if a.schedule {
		location, err := time.LoadLocation(a.cfg.Timezone)
		if err != nil {
			return err
		}
		runner, err := schedule.NewRunner(location, a.cfg.ScheduleSpecs(), greetingJob(&primary, location))
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return runner.Run(ctx)
		})
	}
	var server *health.Server
	if a.cfg.HealthListen != "" {
		server = health.New(a.cfg.HealthListen)
		eg.Go(func() error {
			return server.Serve(ctx)
		})
	}
	for _, spec := range specs {
		eg.Go(func() error {
			return discordio.Run(ctx, spec.token, func(messenger *discordio.Messenger) *zoo.Bot {
				b := zoo.New(zoo.Config{
					Name:      spec.name,
					ChannelID: a.cfg.ChannelID,
					MaxTurns:  a.cfg.MaxConversationTurns,
					BotNames:  a.cfg.BotNames,
					Policy:    spec.policy,
				}, zoo.Deps{
					Messenger:   messenger,
					Characters:  characters,
					Generator:   generator,
					Pacer:       pacer,
					Store:       store,
					DebugLogger: a.debug,
				})
				if server != nil {
					server.Add(b)
				}
				if spec.kind == primaryBot {
					primary.Store(b)
				}
				return b
			})
		})
	}
	return eg.Wait()
}

// greetingJob posts a greeting through the running primary bot so that it
// becomes part of the bot's history.
func greetingJob(primary *atomic.Pointer[zoo.Bot], location *time.Location) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		b := primary.Load()
		if b == nil {
			return errPrimaryNotRunning
		}
		return b.SendScheduled(ctx, schedule.Greeting(time.Now().In(location)))
	}
}

// sender builds a scheduled sender that posts as the primary bot over REST.
func (a *app) sender(ctx context.Context) (*schedule.Sender, func(), error) {
	if err := config.Require("DISCORD_TOKEN_BOT1", a.cfg.PrimaryToken); err != nil {
		return nil, nil, err
	}
	if a.cfg.ChannelID == 0 {
		return nil, nil, fmt.Errorf("%w: CHANNEL_ID", config.ErrMissing)
	}
	location, err := time.LoadLocation(a.cfg.Timezone)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return schedule.NewSender(discordio.NewRestMessenger(a.cfg.PrimaryToken), store, a.cfg.ChannelID, location), closeStore, nil
}

func (a *app) openStore(ctx context.Context) (db.Store, func(), error) {
	store, err := db.Open(ctx, *a.cfg)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, func() {}, nil
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Error("db: error while closing store", tint.Err(err))
		}
	}, nil
}

func (a *app) notionService() *notion.Service {
	notionCfg, err := config.LoadNotion(a.cfg.NotionConfigPath)
	if err != nil {
		slog.Warn("notion: using the default notion config", slog.String("path", a.cfg.NotionConfigPath), tint.Err(err))
		notionCfg = config.DefaultNotion("")
	}
	if a.cfg.NotionDatabaseID != "" {
		notionCfg.DatabaseID = a.cfg.NotionDatabaseID
	}
	source, err := notion.NewDatabaseSource(a.cfg.NotionKey, notionCfg.DatabaseID, util.NewNotionClient())
	if err != nil {
		slog.Error("notion: characters cannot be loaded, falling back to defaults", tint.Err(err))
		return notion.New(notionCfg, nil)
	}
	return notion.New(notionCfg, source)
}
