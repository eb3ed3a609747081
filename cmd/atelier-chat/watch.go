package main

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// fsChangeMsg is sent when a file change is detected in the state directory.
type fsChangeMsg struct{}

// watchConfigDir creates a file system watcher for the state directory, so
// config edits take effect without restarting the client. Returns nil when
// the directory is missing or the watcher cannot be created; the client then
// simply runs with the config it loaded at startup.
func watchConfigDir(dir string) tea.Cmd {
	watcher := initWatcher(dir)
	if watcher == nil {
		return nil
	}
	return runWatcher(watcher)
}

// initWatcher creates a watcher on dir. Returns nil on any failure.
func initWatcher(dir string) *fsnotify.Watcher {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil
	}
	return watcher
}

// runWatcher returns a tea.Cmd that waits for a debounced change, emits one
// fsChangeMsg and closes the watcher. The model re-arms it.
func runWatcher(watcher *fsnotify.Watcher) tea.Cmd {
	return func() tea.Msg {
		defer watcher.Close()

		debounce := newDebounceTimer()
		defer debounce.Stop()

		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				resetDebounceTimer(debounce)

			case <-debounce.C:
				return fsChangeMsg{}

			case _, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return nil
			}
		}
	}
}

// newDebounceTimer creates a stopped timer for debouncing fs events.
func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

// resetDebounceTimer restarts the debounce window.
func resetDebounceTimer(timer *time.Timer) {
	const debounceDuration = 100 * time.Millisecond
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(debounceDuration)
}
