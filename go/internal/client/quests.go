package client

import (
	"fmt"
	"io"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/karmahq/questline/go/clients/karma_api_client"
	"github.com/karmahq/questline/go/internal/countdown"
)

// questRenderer is a countdown.Renderer that prints one line per quest.
type questRenderer struct {
	w      io.Writer
	labels map[string]string

	mu   sync.Mutex
	last map[string]countdown.Display
}

func newQuestRenderer(w io.Writer) *questRenderer {
	return &questRenderer{
		w:      w,
		labels: make(map[string]string),
		last:   make(map[string]countdown.Display),
	}
}

func (r *questRenderer) Render(questID string, d countdown.Display) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.last[questID]
	r.last[questID] = d
	// Re-rendering the same terminal state every tick would spam the
	// terminal; only changes are printed.
	if seen && prev == d {
		return
	}
	fmt.Fprintf(r.w, "%-40s %s\n", r.labels[questID], d.Text)
}

func newQuestsCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "quests",
		Short: "List pending quests with their countdowns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			token, ok := cfg.SessionToken()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), MsgPleaseLogIn)
				return nil
			}

			api := opts.apiClient(cfg)
			quests, err := api.GetQuests(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("fetch quests: %w", err)
			}
			if len(quests) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending quests.")
				return nil
			}

			renderer := newQuestRenderer(cmd.OutOrStdout())
			engine := countdown.NewEngine(renderer)
			for _, quest := range sortedQuests(quests) {
				renderer.labels[quest.QuestIDStr] = questLabel(quest)
				engine.Track(quest.QuestIDStr, parseExpiry(quest.ExpiryTime))
			}

			if !watch {
				engine.Tick()
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			engine.Run(ctx)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep rendering countdowns until interrupted")
	return cmd
}

func sortedQuests(quests []karma_api_client.QuestView) []karma_api_client.QuestView {
	sorted := make([]karma_api_client.QuestView, len(quests))
	copy(sorted, quests)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].QuestIDStr < sorted[j].QuestIDStr
	})
	return sorted
}

func questLabel(quest karma_api_client.QuestView) string {
	if quest.UserFromID != nil {
		return fmt.Sprintf("%s (nominated)", quest.TargetCategory)
	}
	return quest.TargetCategory
}

// parseExpiry turns the server's expiry_time string into a deadline. An
// absent or unparseable value means no deadline.
func parseExpiry(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil
	}
	return &t
}
