package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/agent"
	"github.com/hpkotak/aiplatform/internal/chat"
	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/prompt"
	"github.com/hpkotak/aiplatform/internal/repl"
	"github.com/hpkotak/aiplatform/internal/store"
)

var (
	storeFlag string
	resetFlag bool
	noTools   bool
)

var openStore = store.Open

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session. The conversation is kept in the
configured store (memory, file, redis or sqlite) and resumed next time.

The assistant can read the clock and run shell commands; destructive
commands need your approval. Type 'exit' or 'quit' to end the session,
'/reset' to start over and '/history' to list the conversation.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&storeFlag, "store", "", "override store driver (memory, file, redis, sqlite)")
	chatCmd.Flags().BoolVar(&resetFlag, "reset", false, "discard the stored conversation first")
	chatCmd.Flags().BoolVar(&noTools, "no-tools", false, "chat without tools")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	if storeFlag != "" {
		cfg.Store.Driver = storeFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.logger.Sync() }()

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(st) }()

	ctx := commandContext(cmd)
	if err := st.Setup(ctx, store.SetupOptions{}); err != nil {
		return err
	}

	term := repl.New(ioIn, ioOut)

	useTools := !noTools && supportsTools(s)
	if !noTools && !useTools {
		s.logger.Info("model does not support tool calling; chatting without tools", zap.String("model", s.model))
	}
	opts := []agent.Option{agent.WithLogger(s.logger)}
	if useTools {
		tb, err := agent.NewToolbox(
			agent.Clock{},
			agent.Command{Approve: term.Approve},
		)
		if err != nil {
			return err
		}
		opts = append(opts, agent.WithToolbox(tb))
	}
	a := agent.New(s.platform, s.model, opts...)

	c := chat.New(a, st, platform.Options{})
	system := message.NewBag(message.System(prompt.ChatSystemPrompt(prompt.CurrentEnvironment(), a.Tools())))
	if resetFlag {
		if err := c.Initiate(ctx, system); err != nil {
			return err
		}
	}
	return term.Run(ctx, c, system)
}

func supportsTools(s *session) bool {
	m, err := s.platform.Catalog().Resolve(s.model)
	return err == nil && m.Supports(model.ToolCalling)
}
