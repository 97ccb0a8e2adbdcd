package drip

import (
	"fmt"
	"io"
	"time"
)

// WriteText renders a feed one message per line:
//
//	<RFC3339 instant> | <id> | <kind> | <sender> | <content>
func WriteText(w io.Writer, msgs []Revealed) error {
	for _, m := range msgs {
		if _, err := fmt.Fprintf(w, "%s | %s | %s | %s | %s\n",
			m.ScheduledAt.Format(time.RFC3339), m.ID, m.SenderKind, m.SenderName, m.Content); err != nil {
			return fmt.Errorf("write feed: %w", err)
		}
	}
	return nil
}
