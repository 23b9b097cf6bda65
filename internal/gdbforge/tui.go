package gdbforge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// stageLog is one per-stage build log file shown in the viewer.
type stageLog struct {
	path    string
	stage   string
	target  string
	content string
}

var (
	tuiApp         *tview.Application
	tuiLogs        []stageLog
	tuiActiveIdx   int
	tuiPrevIdx     int
	tuiHeaderBox   *tview.TextView
	tuiLogView     *tview.TextView
	tuiFooterBox   *tview.TextView
	tuiUpdateChan  chan []stageLog
	tuiPrevContent map[string]string
	tuiAutoScroll  bool
)

// runLogTUI is the 'gdbforge log' subcommand: a live viewer over the
// per-stage build logs of every target under the temp root. Tab between
// stage logs with the arrow keys; content refreshes while a build runs.
func runLogTUI() int {
	tuiUpdateChan = make(chan []stageLog, 10)
	tuiPrevContent = make(map[string]string)
	tuiPrevIdx = -1

	tuiApp = tview.NewApplication()

	tuiHeaderBox = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	tuiHeaderBox.SetBorder(true)
	tuiHeaderBox.SetTitle("gdbforge Build Log Viewer")

	tuiLogView = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetScrollable(true).
		SetChangedFunc(func() {
			tuiApp.Draw()
		})
	tuiLogView.SetBorder(true)

	tuiFooterBox = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetTextAlign(tview.AlignLeft)
	tuiFooterBox.SetBorder(true)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tuiHeaderBox, 3, 0, false).
		AddItem(tuiLogView, 0, 1, true).
		AddItem(tuiFooterBox, 3, 0, false)

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlQ, tcell.KeyEsc:
			tuiApp.Stop()
			return nil
		case tcell.KeyLeft:
			cycleLog(-1)
			return nil
		case tcell.KeyRight:
			cycleLog(1)
			return nil
		case tcell.KeyHome:
			tuiLogView.ScrollToBeginning()
			return nil
		case tcell.KeyEnd:
			tuiLogView.ScrollToEnd()
			return nil
		case tcell.KeyUp:
			row, _ := tuiLogView.GetScrollOffset()
			if row > 0 {
				tuiLogView.ScrollTo(row-1, 0)
			}
			return nil
		case tcell.KeyDown:
			row, _ := tuiLogView.GetScrollOffset()
			tuiLogView.ScrollTo(row+1, 0)
			return nil
		case tcell.KeyPgUp:
			row, _ := tuiLogView.GetScrollOffset()
			if row > 10 {
				tuiLogView.ScrollTo(row-10, 0)
			} else {
				tuiLogView.ScrollToBeginning()
			}
			return nil
		case tcell.KeyPgDn:
			row, _ := tuiLogView.GetScrollOffset()
			tuiLogView.ScrollTo(row+10, 0)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				tuiApp.Stop()
				return nil
			case 'h':
				cycleLog(-1)
				return nil
			case 'l':
				cycleLog(1)
				return nil
			}
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(400 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			logs := readStageLogs()
			select {
			case tuiUpdateChan <- logs:
			default:
			}
		}
	}()

	go func() {
		for logs := range tuiUpdateChan {
			var currentPath string
			if tuiActiveIdx < len(tuiLogs) {
				currentPath = tuiLogs[tuiActiveIdx].path
			}
			tuiLogs = logs
			if currentPath != "" {
				found := false
				for i, log := range tuiLogs {
					if log.path == currentPath {
						tuiActiveIdx = i
						found = true
						break
					}
				}
				if !found && tuiActiveIdx >= len(tuiLogs) && len(tuiLogs) > 0 {
					tuiActiveIdx = len(tuiLogs) - 1
				}
			}
			tuiApp.QueueUpdateDraw(updateLogTUI)
		}
	}()

	tuiApp.SetRoot(flex, true).SetFocus(tuiLogView)

	tuiLogs = readStageLogs()
	tuiActiveIdx = 0
	updateLogTUI()

	if err := tuiApp.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui:", err)
		return 1
	}
	return 0
}

func cycleLog(delta int) {
	if len(tuiLogs) == 0 {
		return
	}
	tuiActiveIdx = (tuiActiveIdx + delta + len(tuiLogs)) % len(tuiLogs)
	tuiAutoScroll = true
	updateLogTUI()
}

func updateLogTUI() {
	if tuiApp == nil || tuiHeaderBox == nil || tuiLogView == nil || tuiFooterBox == nil {
		return
	}

	if len(tuiLogs) == 0 {
		tuiHeaderBox.SetText("[gray]No build logs found[white]")
		tuiLogView.SetText("No build log yet. Run 'gdbforge <os> <arch>' to start a build.")
	} else if tuiActiveIdx < len(tuiLogs) {
		log := tuiLogs[tuiActiveIdx]
		tuiHeaderBox.SetText(fmt.Sprintf("[gray]Log %d/%d: %s / %s (%s)[white]",
			tuiActiveIdx+1, len(tuiLogs), log.target, log.stage, log.path))

		switchedTabs := tuiPrevIdx != tuiActiveIdx
		if switchedTabs {
			tuiPrevIdx = tuiActiveIdx
		}

		prevContent, hadPrev := tuiPrevContent[log.path]
		if log.content != prevContent || switchedTabs {
			row, _ := tuiLogView.GetScrollOffset()

			tuiLogView.Clear()
			w := tview.ANSIWriter(tuiLogView)
			w.Write([]byte(log.content))

			if switchedTabs || tuiAutoScroll {
				tuiLogView.ScrollToEnd()
				tuiAutoScroll = false
			} else if hadPrev {
				grown := strings.Count(log.content, "\n") - strings.Count(prevContent, "\n")
				if grown > 0 {
					tuiLogView.ScrollTo(row+grown, 0)
				} else {
					tuiLogView.ScrollTo(row, 0)
				}
			} else {
				tuiLogView.ScrollToEnd()
			}
			tuiPrevContent[log.path] = log.content
		}
	}

	tuiFooterBox.SetText("[gray]q/Esc quit | ← →  (h/l) switch logs | ↑ ↓ PgUp PgDn scroll | Home/End jump[white]")
}

// readStageLogs scans the temp root for per-stage logs across all targets,
// newest first.
func readStageLogs() []stageLog {
	paths, _ := filepath.Glob(filepath.Join(tmpRoot, "*", "logs", "*.log"))
	if len(paths) == 0 {
		return nil
	}

	sort.Slice(paths, func(i, j int) bool {
		ai, err1 := os.Stat(paths[i])
		aj, err2 := os.Stat(paths[j])
		if err1 != nil || err2 != nil {
			return paths[i] > paths[j]
		}
		return ai.ModTime().After(aj.ModTime())
	})

	logs := make([]stageLog, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		text := string(content)
		if err != nil {
			text = fmt.Sprintf("failed to read log: %v", err)
		}
		logs = append(logs, stageLog{
			path:    path,
			stage:   strings.TrimSuffix(filepath.Base(path), ".log"),
			target:  filepath.Base(filepath.Dir(filepath.Dir(path))),
			content: text,
		})
	}
	return logs
}
