package tags

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	goflac "github.com/go-flac/go-flac"
	"github.com/gopxl/beep/v2/flac"
	"github.com/llehouerou/go-m4a"
	"github.com/llehouerou/go-mp3"
)

// ErrUnsupportedFormat is returned for files whose extension is not handled.
var ErrUnsupportedFormat = errors.New("unsupported format")

// opusSampleRate is the rate Opus granule positions are counted in.
const opusSampleRate = 48000

// ReadAudioInfo reads audio stream properties (duration, format, sample rate)
// without decoding the whole stream where the container allows it.
func ReadAudioInfo(path string) (*AudioInfo, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsMusicFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	if ext == ExtFLAC {
		return readFLACStreamInfo(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ExtMP3:
		return readMP3AudioInfo(f)
	case ExtOPUS, ExtOGG:
		return readOggAudioInfo(f)
	default:
		return readM4AAudioInfo(f)
	}
}

// ReadDuration returns the stream duration of the file at path.
func ReadDuration(path string) (time.Duration, error) {
	info, err := ReadAudioInfo(path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func readMP3AudioInfo(f *os.File) (*AudioInfo, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}

	sampleRate := decoder.SampleRate()
	if sampleRate == 0 {
		return nil, errors.New("mp3: invalid sample rate")
	}

	sampleCount := max(decoder.SampleCount(), 0)

	return &AudioInfo{
		Duration:   samplesToDuration(sampleCount, sampleRate),
		Format:     "MP3",
		SampleRate: sampleRate,
		BitDepth:   16,
	}, nil
}

// readFLACStreamInfo extracts audio info from the STREAMINFO block.
func readFLACStreamInfo(path string) (*AudioInfo, error) {
	flacFile, err := goflac.ParseFile(path)
	if err != nil {
		// go-flac rejects files with a prepended ID3 tag
		return readFLACWithBeep(path)
	}

	for _, meta := range flacFile.Meta {
		if meta.Type != goflac.StreamInfo || len(meta.Data) < 18 {
			continue
		}
		data := meta.Data

		// 20 bits sample rate, 3 bits channels, 5 bits bits-per-sample minus
		// one, 36 bits total samples.
		sampleRate := int(data[10])<<12 | int(data[11])<<4 | int(data[12])>>4
		bitsPerSample := (int(data[12])&0x01)<<4 | int(data[13])>>4 + 1
		totalSamples := int64(data[13]&0x0F)<<32 | int64(binary.BigEndian.Uint32(data[14:18]))

		return &AudioInfo{
			Duration:   samplesToDuration(totalSamples, sampleRate),
			Format:     "FLAC",
			SampleRate: sampleRate,
			BitDepth:   bitsPerSample,
		}, nil
	}

	return readFLACWithBeep(path)
}

// readFLACWithBeep uses beep's FLAC decoder as fallback.
func readFLACWithBeep(path string) (*AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := skipID3v2(f); err != nil {
		return nil, err
	}

	streamer, format, err := flac.Decode(f)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	return &AudioInfo{
		Duration:   format.SampleRate.D(streamer.Len()),
		Format:     "FLAC",
		SampleRate: int(format.SampleRate),
		BitDepth:   format.Precision * 8,
	}, nil
}

// readOggAudioInfo reads the codec from the identification header on the
// first page and the duration from the granule position of the last page.
func readOggAudioInfo(f *os.File) (*AudioInfo, error) {
	head := make([]byte, 128)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	format, sampleRate, err := oggCodec(head[:n])
	if err != nil {
		return nil, err
	}

	granule, err := lastOggGranule(f)
	if err != nil {
		return nil, err
	}

	return &AudioInfo{
		Duration:   samplesToDuration(granule, sampleRate),
		Format:     format,
		SampleRate: sampleRate,
		BitDepth:   16,
	}, nil
}

// oggCodec inspects the first Ogg page. Vorbis granules count samples at
// the stream rate, Opus granules always at 48 kHz.
func oggCodec(page []byte) (format string, sampleRate int, err error) {
	if len(page) < 27 || string(page[:4]) != "OggS" {
		return "", 0, errors.New("ogg: missing page header")
	}
	packet := page[27+int(page[26]):]

	switch {
	case len(packet) >= 8 && string(packet[:8]) == "OpusHead":
		return "OPUS", opusSampleRate, nil
	case len(packet) >= 16 && string(packet[:7]) == "\x01vorbis":
		return "VORBIS", int(binary.LittleEndian.Uint32(packet[12:16])), nil
	}
	return "", 0, errors.New("ogg: unknown codec")
}

// lastOggGranule returns the granule position of the last page in the file.
func lastOggGranule(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	searchSize := min(int64(65536), fi.Size())
	if _, err := f.Seek(-searchSize, io.SeekEnd); err != nil {
		return 0, err
	}

	buf := make([]byte, searchSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}
	buf = buf[:n]

	for i := len(buf) - 27; i >= 0; i-- {
		if string(buf[i:i+4]) != "OggS" {
			continue
		}
		if granule := int64(binary.LittleEndian.Uint64(buf[i+6 : i+14])); granule > 0 {
			return granule, nil
		}
	}
	return 0, errors.New("ogg: could not determine duration")
}

func readM4AAudioInfo(f *os.File) (*AudioInfo, error) {
	container, err := m4a.Open(f)
	if err != nil {
		return nil, err
	}

	codecType := container.Codec()
	format := "M4A"
	switch codecType {
	case m4a.CodecAAC:
		format = "AAC"
	case m4a.CodecALAC:
		format = "ALAC"
	case m4a.CodecUnknown:
	}

	bitDepth := 16
	if codecType == m4a.CodecALAC && container.SampleSize() == 24 {
		bitDepth = 24
	}

	return &AudioInfo{
		Duration:   container.Duration(),
		Format:     format,
		SampleRate: int(container.SampleRate()),
		BitDepth:   bitDepth,
	}, nil
}

func samplesToDuration[N ~int | ~int32 | ~int64](samples N, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// skipID3v2 skips an ID3v2 tag if present at the beginning of the file.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	if n < 10 || string(header[0:3]) != id3Magic {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// syncsafe integer in bytes 6-9
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
