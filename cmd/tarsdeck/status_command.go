package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/potrolco/tarsdeck/internal/app"
	"github.com/potrolco/tarsdeck/internal/state"
	"github.com/potrolco/tarsdeck/internal/tars"
)

func newStatusCmd(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print workers, pending tasks and recent history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, cc)
		},
	}
}

func runStatus(cmd *cobra.Command, cc *commandContext) error {
	return cc.withDeck(cmd.Context(), func(d *app.Deck) error {
		ctx := cmd.Context()
		page := d.Config.PageSize

		// every listing is attempted so one failure still prints the rest
		var g errgroup.Group
		g.Go(func() error { return d.Workers.Fetch(ctx) })
		g.Go(func() error { return d.Queue.Fetch(ctx, 0, page) })
		g.Go(func() error { return d.History.Fetch(ctx, 0, page) })
		fetchErr := g.Wait()

		writeStatus(cmd.OutOrStdout(), d.Workers.Snapshot(), d.Queue.Snapshot(), d.History.Snapshot(), time.Now())
		return fetchErr
	})
}

func writeStatus(out io.Writer, workers state.WorkersSnapshot, queue state.QueueSnapshot, history state.HistorySnapshot, now time.Time) {
	workerRows := make([][]string, 0, len(workers.Workers))
	for _, w := range workers.Workers {
		progress := ""
		if w.Status() == tars.WorkerActive && w.Subprocess != nil && w.Subprocess.Percent != "" {
			progress = w.Subprocess.Percent + "%"
		}
		workerRows = append(workerRows, []string{w.Name, string(w.Status()), progress, baseName(w.CurrentFile)})
	}
	if workers.Error != "" {
		fmt.Fprintln(out, workers.Error)
	}
	writeSection(out,
		fmt.Sprintf("Workers (%d active, %d idle, %d paused)", len(workers.Active()), len(workers.Idle()), len(workers.Paused())),
		[]column{{title: "Worker"}, {title: "Status"}, {title: "Progress", right: true}, {title: "File"}},
		workerRows,
	)

	queueRows := make([][]string, 0, len(queue.Tasks))
	for _, t := range queue.Tasks {
		queueRows = append(queueRows, []string{strconv.FormatInt(t.ID, 10), strconv.FormatInt(t.Priority, 10), baseName(t.AbsPath)})
	}
	if queue.Error != "" {
		fmt.Fprintln(out, queue.Error)
	}
	writeSection(out,
		fmt.Sprintf("Pending (%d of %d)", len(queue.Tasks), queue.Total),
		[]column{{title: "ID", right: true}, {title: "Priority", right: true}, {title: "File"}},
		queueRows,
	)

	historyRows := make([][]string, 0, len(history.Tasks))
	for _, t := range history.Tasks {
		result := "failed"
		if t.TaskSuccess {
			result = "success"
		}
		finished := ""
		if !t.FinishTime.IsZero() {
			finished = now.Sub(t.FinishTime.Time).Round(time.Minute).String() + " ago"
		}
		label := t.TaskLabel
		if label == "" {
			label = baseName(t.AbsPath)
		}
		historyRows = append(historyRows, []string{strconv.FormatInt(t.ID, 10), result, finished, label})
	}
	if history.Error != "" {
		fmt.Fprintln(out, history.Error)
	}
	writeSection(out,
		fmt.Sprintf("Completed (%d succeeded, %d failed)", len(history.Succeeded()), len(history.Failed())),
		[]column{{title: "ID", right: true}, {title: "Result"}, {title: "Finished", right: true}, {title: "Task"}},
		historyRows,
	)
}

// baseName is the file name of path, or "" when there is no path.
func baseName(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func newGPUCmd(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gpu",
		Short: "Show GPU devices and worker allocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withDeck(cmd.Context(), func(d *app.Deck) error {
				status, err := d.API.FetchGPUStatus(cmd.Context())
				if err != nil {
					return err
				}
				writeGPUStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func writeGPUStatus(out io.Writer, status tars.GPUStatus) {
	if !status.Enabled {
		fmt.Fprintln(out, "GPU scheduling is disabled")
		return
	}
	fmt.Fprintf(out, "Strategy %s, %d/%d devices available, %d allocations, %d workers per GPU\n",
		status.Strategy, status.AvailableDevices, status.TotalDevices, status.ActiveAllocations, status.MaxWorkersPerGPU)

	workersByDevice := make(map[string][]string)
	for _, a := range status.Allocations {
		workersByDevice[a.DeviceID] = append(workersByDevice[a.DeviceID], a.WorkerID)
	}
	rows := make([][]string, 0, len(status.Devices))
	for _, dev := range status.Devices {
		rows = append(rows, []string{dev.DeviceID, dev.Type, dev.Name, strconv.Itoa(len(workersByDevice[dev.DeviceID]))})
	}
	writeSection(out, "Devices",
		[]column{{title: "Device"}, {title: "Type"}, {title: "Name"}, {title: "Workers", right: true}},
		rows,
	)
}

func newSettingsCmd(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Dump the server settings as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withDeck(cmd.Context(), func(d *app.Deck) error {
				settings, err := d.API.ReadSettings(cmd.Context())
				if err != nil {
					return err
				}
				return writeSettings(cmd.OutOrStdout(), settings)
			})
		},
	}
}

func writeSettings(out io.Writer, settings tars.Settings) error {
	if len(settings) == 0 {
		return errors.New("server returned no settings")
	}
	data, err := toml.Marshal(map[string]any(settings))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = out.Write(data)
	return err
}
