package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"yuanfang/internal/app"
	"yuanfang/internal/logging"
)

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	replyColor   = color.New(color.FgGreen)
	emotionColor = color.New(color.FgYellow)
	errColor     = color.New(color.FgRed)
)

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := app.New(cfg, logging.NewComponentLogger("chat"))
			if err != nil {
				return err
			}
			defer application.Close()

			return runChatLoop(cmd.Context(), application)
		},
	}
}

func runChatLoop(ctx context.Context, application *app.App) error {
	sess := application.Controller.OpenSession()
	defer application.Controller.CloseSession(sess.ID)

	promptColor.Printf("yuanfang — session %s\n", sess.ID)
	fmt.Println(`Type your request, or "exit" to quit.`)
	fmt.Println()

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       filepath.Join(homeDir, ".yuanfang_history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(input) == 0 {
				fmt.Println("Goodbye!")
				return nil
			}
			continue
		}
		if err == io.EOF {
			fmt.Println("Goodbye!")
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" || input == "q" {
			fmt.Println("Goodbye!")
			return nil
		}

		outcome, err := application.Controller.SubmitUtterance(ctx, sess.ID, input)
		if err != nil {
			errColor.Printf("error: %v\n\n", err)
			continue
		}

		fmt.Println()
		replyColor.Println(outcome.Reply)
		if outcome.Emotion != "" && outcome.Emotion != "neutral" {
			emotionColor.Printf("(detected mood: %s)\n", outcome.Emotion)
		}
		fmt.Println()
		application.Speech.Speak(outcome.Reply)
	}
}
