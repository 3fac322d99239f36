package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"clinical-speech-translator/internal/language"
	"clinical-speech-translator/internal/service/session"
	"clinical-speech-translator/internal/service/stt"
	"clinical-speech-translator/internal/service/stt/google"
	"clinical-speech-translator/internal/service/stt/mock"
	"clinical-speech-translator/internal/service/translator"
	"clinical-speech-translator/internal/service/tts"
)

var stderr io.Writer = os.Stderr

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Start an interactive recording session",
	Long: `Start an interactive recording session. Type a command and press Enter:

  start   begin a new recording (clears the previous transcript)
  stop    stop recording
  speak   read the current translation aloud
  lang    change languages while idle, e.g. "lang es-ES fr-FR"
  quit    exit`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

var (
	sourceLang string
	targetLang string
	provider   string
	audioPath  string
	endpoint   string
	debounce   time.Duration
	retryDelay time.Duration
	maxRetries int
	ttsMode    string
	ttsCommand string
)

func init() {
	recordCmd.Flags().StringVarP(&sourceLang, "source", "s", cfg.Client.SourceLanguage, "source language code")
	recordCmd.Flags().StringVarP(&targetLang, "target", "t", cfg.Client.TargetLanguage, "target language code")
	recordCmd.Flags().StringVar(&provider, "provider", cfg.STT.Provider, "speech capture provider: mock, google")
	recordCmd.Flags().StringVar(&audioPath, "audio", "", "PCM WAV file streamed to the google provider")
	recordCmd.Flags().StringVar(&endpoint, "endpoint", cfg.Client.Endpoint, "translation endpoint URL")
	recordCmd.Flags().DurationVar(&debounce, "debounce", cfg.Client.DebounceDelay, "quiet period before translating")
	recordCmd.Flags().DurationVar(&retryDelay, "retry-delay", cfg.Client.RetryDelay, "delay before retrying a rate-limited request")
	recordCmd.Flags().IntVar(&maxRetries, "max-retries", cfg.Client.MaxRetries, "rate-limit retries per transcript")
	recordCmd.Flags().StringVar(&ttsMode, "tts", cfg.TTS.Mode, "speech output: log, exec")
	recordCmd.Flags().StringVar(&ttsCommand, "tts-command", cfg.TTS.Command, "command run by the exec speech output; {lang} is replaced by the language code")

	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	pair, err := parsePair(sourceLang, targetLang)
	if err != nil {
		return err
	}

	capture, err := captureFactory(provider, audioPath)
	if err != nil {
		return err
	}

	speaker, err := tts.New(ttsMode, ttsCommand)
	if err != nil {
		return err
	}

	controller := session.New(session.Config{
		DebounceDelay: debounce,
		RetryDelay:    retryDelay,
		MaxRetries:    maxRetries,
		Pair:          pair,
		Provider:      provider,
	},
		translator.New(endpoint, cfg.Client.RequestTimeout),
		capture,
		speaker,
		session.NewTerminalRenderer(cmd.OutOrStdout()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go controller.Run(ctx)

	fmt.Fprintln(cmd.OutOrStdout(), "commands: start, stop, speak, lang <source> <target>, quit")
	lines := readLines(ctx, cmd.InOrStdin())

	for {
		select {
		case <-ctx.Done():
			stop()
			<-controller.Done()
			return nil
		case line, ok := <-lines:
			if !ok {
				stop()
				<-controller.Done()
				return nil
			}
			if quit := dispatch(ctx, controller, cmd.OutOrStdout(), line); quit {
				stop()
				<-controller.Done()
				return nil
			}
		}
	}
}

// readLines streams r line by line. The channel closes at EOF or once ctx is
// done, whichever comes first.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// dispatch runs one interactive command and reports whether to exit.
func dispatch(ctx context.Context, c *session.Controller, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "start":
		err = c.Start(ctx)
	case "stop":
		err = c.Stop(ctx)
	case "speak":
		err = c.Speak(ctx)
	case "lang":
		if len(fields) != 3 {
			err = errors.New("usage: lang <source> <target>")
			break
		}
		var pair language.Pair
		if pair, err = parsePair(fields[1], fields[2]); err == nil {
			err = c.SetLanguages(ctx, pair)
		}
		if err == nil {
			fmt.Fprintf(out, "languages: %s -> %s\n", pair.SourceName(), pair.TargetName())
		}
	case "quit", "exit":
		return true
	default:
		err = fmt.Errorf("unknown command %q", fields[0])
	}

	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
	return false
}

func parsePair(source, target string) (language.Pair, error) {
	src, err := language.Parse(source)
	if err != nil {
		return language.Pair{}, err
	}
	tgt, err := language.Parse(target)
	if err != nil {
		return language.Pair{}, err
	}
	return language.Pair{Source: src, Target: tgt}, nil
}

func captureFactory(provider, audioPath string) (stt.Factory, error) {
	switch provider {
	case "mock":
		return mock.Factory(nil, mock.WithoutEnd()), nil
	case "google":
		if audioPath == "" {
			return nil, errors.New("--audio is required for the google provider")
		}
		data, err := os.ReadFile(audioPath)
		if err != nil {
			return nil, fmt.Errorf("read audio: %w", err)
		}
		return func(ctx context.Context) (stt.Adapter, error) {
			r := bytes.NewReader(data)
			format, err := stt.ReadWAVHeader(r)
			if err != nil {
				return nil, err
			}
			gcfg := google.DefaultConfig()
			gcfg.SampleRateHz = format.SampleRateHz
			gcfg.InterimResults = cfg.STT.InterimResults
			gcfg.AudioEncoding = cfg.STT.AudioEncoding
			if format.SampleRateHz != cfg.STT.SampleRateHz {
				log.Warn().
					Int("fileSampleRateHz", format.SampleRateHz).
					Int("configuredSampleRateHz", cfg.STT.SampleRateHz).
					Msg("Using the sample rate from the WAV header")
			}
			a, err := google.New(ctx, gcfg, r)
			if err != nil {
				return nil, err
			}
			return a, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown capture provider %q", provider)
	}
}
