package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/vibecheck/internal/config"
	"github.com/ryosukesatoh/vibecheck/internal/extract"
	"github.com/ryosukesatoh/vibecheck/internal/fetcher"
	"github.com/ryosukesatoh/vibecheck/internal/metrics"
	"github.com/ryosukesatoh/vibecheck/internal/publisher"
	"github.com/ryosukesatoh/vibecheck/internal/runner"
	"github.com/ryosukesatoh/vibecheck/internal/summarizer"
)

func runnerOptions(cfg *config.Config) (runner.Options, error) {
	mode, err := extract.ModeFromString(cfg.Pipeline.Mode)
	if err != nil {
		return runner.Options{}, err
	}

	opts := runner.ProfileFor(mode)
	opts.Sort = cfg.Reddit.Sort
	opts.Window = cfg.Reddit.Window
	opts.MaxThreads = cfg.Pipeline.MaxThreads
	opts.Reply = fetcher.ReplyOptions{Depth: cfg.Pipeline.ReplyDepth, Limit: cfg.Pipeline.ReplyLimit}
	opts.Thresholds = extract.Thresholds{MinScore: *cfg.Pipeline.MinScore, MinUpvoteRatio: *cfg.Pipeline.MinUpvoteRatio}
	opts.Cap = cfg.Pipeline.Cap
	opts.VerifyQuotes = cfg.Pipeline.ShouldVerifyQuotes()
	opts.SourceTimeout = cfg.Pipeline.SourceTimeout
	opts.CompletionTimeout = cfg.Pipeline.CompletionTimeout
	return opts, nil
}

func buildPublishers(cfg *config.Config) ([]publisher.Publisher, error) {
	switch cfg.Publisher.Type {
	case "stdout":
		return []publisher.Publisher{publisher.NewStdoutPublisher()}, nil
	case "discord":
		return []publisher.Publisher{publisher.NewDiscordPublisher(cfg.Publisher.Discord.WebhookURL)}, nil
	case "email":
		e := cfg.Publisher.Email
		return []publisher.Publisher{publisher.NewEmailPublisher(e.SMTPHost, e.SMTPPort, e.Username, e.Password, e.From, e.To)}, nil
	default:
		return nil, fmt.Errorf("unknown publisher type: %s", cfg.Publisher.Type)
	}
}

// buildRunner wires the Reddit fetcher, the OpenAI summarizer and the
// configured publishers into a pipeline.
func buildRunner(cfg *config.Config, log logrus.FieldLogger, m *metrics.Metrics, pubs []publisher.Publisher) (*runner.Runner, error) {
	opts, err := runnerOptions(cfg)
	if err != nil {
		return nil, err
	}

	f := fetcher.NewRedditFetcher(fetcher.RedditCredentials{
		UserAgent:    cfg.Reddit.UserAgent,
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
	},
		fetcher.WithRedditEndpoints(cfg.Reddit.BaseURL, cfg.Reddit.TokenURL),
		fetcher.WithRedditTimeout(cfg.Pipeline.SourceTimeout),
	)

	completer := summarizer.NewOpenAICompleter(summarizer.OpenAIConfig{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		BaseURL:     cfg.OpenAI.BaseURL,
		Temperature: *cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     cfg.Pipeline.CompletionTimeout,
	})
	s := summarizer.New(completer, opts.Variant)

	return runner.New(opts, f, s, pubs, runner.WithMetrics(m), runner.WithLogger(log)), nil
}
