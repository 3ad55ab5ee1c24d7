package transcribe

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0}
	data := encodeWAV(samples, 16000)

	if got := len(data); got != 44+len(samples)*2 {
		t.Fatalf("len = %d, want %d", got, 44+len(samples)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		t.Fatal("missing fmt/data chunks")
	}

	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Errorf("bits = %d, want 16", bits)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", size, len(samples)*2)
	}
}

func TestEncodeWAVSamples(t *testing.T) {
	data := encodeWAV([]float32{1.0, -1.0, 0}, 16000)
	body := data[44:]

	if v := int16(binary.LittleEndian.Uint16(body[0:2])); v != 32767 {
		t.Errorf("sample 0 = %d, want 32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(body[2:4])); v != -32767 {
		t.Errorf("sample 1 = %d, want -32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(body[4:6])); v != 0 {
		t.Errorf("sample 2 = %d, want 0", v)
	}
}

func TestEncodeWAVClamps(t *testing.T) {
	data := encodeWAV([]float32{2.0, -2.0}, 16000)
	body := data[44:]

	if v := int16(binary.LittleEndian.Uint16(body[0:2])); v != 32767 {
		t.Errorf("over-range sample = %d, want 32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(body[2:4])); v != -32767 {
		t.Errorf("under-range sample = %d, want -32767", v)
	}
}

func TestParseWhisperOutput(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    string
		wantErr bool
	}{
		{
			name: "segments_joined",
			json: `{"transcription":[{"text":" hello"},{"text":" world"}]}`,
			want: "hello world",
		},
		{
			name: "empty_transcription",
			json: `{"transcription":[]}`,
			want: "",
		},
		{
			name:    "not_json",
			json:    "plain text output",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhisperOutput([]byte(tt.json))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseWhisperOutput: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
