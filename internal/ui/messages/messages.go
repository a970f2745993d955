package messages

import (
	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
)

// View transition messages.
type (
	GoBackMsg struct{}

	// OpenReplyMsg opens the composer. An empty Parent comments on the
	// thread itself.
	OpenReplyMsg struct {
		Parent       thread.ID
		ParentAuthor string
		Quote        string
	}
)

// Data messages.
type (
	HeaderLoadedMsg struct {
		Item *api.Item
		Err  error
	}

	// SubmitReplyMsg asks the thread view to post text under Parent.
	SubmitReplyMsg struct {
		Parent thread.ID
		Text   string
	}

	// MutationDoneMsg carries the outcome of a comment, reply or delete.
	MutationDoneMsg struct {
		Result thread.MutationResult
	}

	// TotalChangedMsg reports an authoritative child count from the monitor.
	TotalChangedMsg struct {
		ID    thread.ID
		Count int
	}

	StatusMsg struct {
		Text    string
		IsError bool
	}

	SessionRestoredMsg struct {
		Username string
	}
)
