package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsReader      int64
	errorsPipeline    int64
	errorsWriter      int64
	warnsReader       int64
	warnsPipeline     int64
	warnsWriter       int64
	snapshotsRead     int64
	instrumentsFailed int64
	filesWritten      int64
	channels          sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	switch {
	case strings.Contains(component, "reader") || strings.Contains(component, "databento"):
		atomic.AddInt64(&warnsReader, 1)
	case strings.Contains(component, "writer"):
		atomic.AddInt64(&warnsWriter, 1)
	default:
		atomic.AddInt64(&warnsPipeline, 1)
	}
}

func recordError(component string) {
	switch {
	case strings.Contains(component, "reader") || strings.Contains(component, "databento"):
		atomic.AddInt64(&errorsReader, 1)
	case strings.Contains(component, "writer"):
		atomic.AddInt64(&errorsWriter, 1)
	default:
		atomic.AddInt64(&errorsPipeline, 1)
	}
}

// IncrementSnapshotsRead records snapshot rows loaded by the reader.
func IncrementSnapshotsRead(rows int) {
	atomic.AddInt64(&snapshotsRead, int64(rows))
	recordChannel("snapshot_rows", rows)
}

// IncrementInstrumentFailure records one instrument excluded from the run.
func IncrementInstrumentFailure() {
	atomic.AddInt64(&instrumentsFailed, 1)
}

// IncrementFileWritten records one result file produced by the writer.
func IncrementFileWritten(size int64) {
	atomic.AddInt64(&filesWritten, 1)
	recordChannel("result_files", int(size))
}

// RecordChannelMessage tracks message counts and byte volume per named flow.
func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors_reader":      atomic.LoadInt64(&errorsReader),
		"errors_pipeline":    atomic.LoadInt64(&errorsPipeline),
		"errors_writer":      atomic.LoadInt64(&errorsWriter),
		"warns_reader":       atomic.LoadInt64(&warnsReader),
		"warns_pipeline":     atomic.LoadInt64(&warnsPipeline),
		"warns_writer":       atomic.LoadInt64(&warnsWriter),
		"snapshots_read":     atomic.LoadInt64(&snapshotsRead),
		"instruments_failed": atomic.LoadInt64(&instrumentsFailed),
		"files_written":      atomic.LoadInt64(&filesWritten),
		"goroutines":         runtime.NumGoroutine(),
		"cpu_percent":        cpuPct,
		"memory_mb":          int64(memStats.Used) / 1024 / 1024,
		"disk_mb":            int64(diskStats.Used) / 1024 / 1024,
		"channels":           channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsReader"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_reader"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsPipeline"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_pipeline"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsWriter"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_writer"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("SnapshotsRead"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["snapshots_read"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("InstrumentsFailed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["instruments_failed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FilesWritten"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["files_written"].(int64)))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
