package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"static-web-server/internal/metrics"
	"static-web-server/internal/worker"
)

// printReport は停止後のワーカーごとの集計を表示する
func printReport(w io.Writer, workers []worker.WorkerInfo, snap metrics.Snapshot) {
	table := tablewriter.NewWriter(w)
	table.Header("Worker", "Executed", "Status")

	for _, info := range workers {
		_ = table.Append(
			strconv.Itoa(info.ID),
			strconv.FormatUint(info.Executed, 10),
			workerStatus(info),
		)
	}

	if err := table.Render(); err != nil {
		fmt.Fprintf(w, "failed to render report: %v\n", err)
	}

	fmt.Fprintf(w, "Requests: %d (2xx %d, 4xx %d, 5xx %d), rejected %d, write failures %d\n",
		snap.TotalRequests, snap.Success, snap.ClientErrors, snap.ServerErrors,
		snap.Rejected, snap.WriteFailures)
	fmt.Fprintf(w, "Bytes sent: %d, avg latency %v, p99 %v, uptime %v\n",
		snap.BytesSent, snap.AverageLatency.Round(time.Microsecond),
		snap.P99Latency.Round(time.Microsecond), snap.Elapsed.Round(time.Second))
}

func workerStatus(info worker.WorkerInfo) string {
	switch {
	case info.Fault != "":
		return "fault: " + info.Fault
	case info.Alive:
		return "running"
	default:
		return "stopped"
	}
}
