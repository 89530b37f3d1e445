package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/types"
)

// FileName returns the export file name of a segment:
// "{recording}_{ordinal:04}_{startMs}_to_{endMs}.wav".
func FileName(recordingID string, seg types.AudioSegment) string {
	return fmt.Sprintf("%s_%04d_%d_to_%d.wav", recordingID, seg.Ordinal, seg.StartMs, seg.EndMs)
}

// WAVExporter writes each segment as a WAV file under Dir/{recording}/.
type WAVExporter struct {
	Dir string
}

var _ Exporter = (*WAVExporter)(nil)

// Export implements [Exporter].
func (x *WAVExporter) Export(_ context.Context, recordingID string, seg types.AudioSegment, format audio.Format) error {
	dir := filepath.Join(x.Dir, recordingID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("segment: export: %w", err)
	}
	data, err := audio.EncodeWAV(audio.PCM{
		Data:       seg.Audio,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	})
	if err != nil {
		return fmt.Errorf("segment: export %s: %w", seg.ID, err)
	}
	path := filepath.Join(dir, FileName(recordingID, seg))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("segment: export: %w", err)
	}
	return nil
}
