package fetch

import "github.com/ssh-vom/archive-scout/internal/providers/archive"

// Progress is the aggregate state of a session.
type Progress struct {
	// Page is the last search page requested.
	Page int
	// TotalAvailable is the archive's result count. Zero means unknown.
	TotalAvailable int
	TotalFetched   int
	TotalBytes     int64
	// Percent is min(TotalFetched/TotalAvailable*100, 100).
	Percent float64
}

// Observer receives session events in order. Callbacks run on a delivery
// goroutine owned by the session and may call Pause, Resume or Cancel.
type Observer interface {
	OnEntry(entry archive.Entry)
	OnProgress(progress Progress)
	OnStatusChange(status Status, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Entry  func(archive.Entry)
	Update func(Progress)
	Status func(Status, error)
}

func (funcs ObserverFuncs) OnEntry(entry archive.Entry) {
	if funcs.Entry != nil {
		funcs.Entry(entry)
	}
}

func (funcs ObserverFuncs) OnProgress(progress Progress) {
	if funcs.Update != nil {
		funcs.Update(progress)
	}
}

func (funcs ObserverFuncs) OnStatusChange(status Status, err error) {
	if funcs.Status != nil {
		funcs.Status(status, err)
	}
}

type eventKind int

const (
	entryEvent eventKind = iota
	progressEvent
	statusEvent
)

type event struct {
	kind     eventKind
	seq      uint64
	target   int
	entry    archive.Entry
	progress Progress
	status   Status
	err      error
}

func (ev event) deliver(observer Observer) {
	switch ev.kind {
	case entryEvent:
		observer.OnEntry(ev.entry)
	case progressEvent:
		observer.OnProgress(ev.progress)
	case statusEvent:
		observer.OnStatusChange(ev.status, ev.err)
	}
}
