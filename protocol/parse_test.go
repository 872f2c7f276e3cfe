package protocol

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		build   func(buf []byte)
		want    Frame
		payload []byte
		wantErr bool
	}{
		{
			name: "data",
			build: func(buf []byte) {
				_, _ = BuildData(buf, 3, true, []byte("abc"))
			},
			want:    Frame{Type: FrameData, Seq: 3, Last: true, Length: 8},
			payload: []byte("abc"),
		},
		{
			name: "ack status response",
			build: func(buf []byte) {
				_, _ = BuildAck(buf, 2, true)
			},
			want: Frame{Type: FrameAck, Seq: 2, StatusResponse: true, Length: AckFrameLength},
		},
		{
			name: "nack overflow",
			build: func(buf []byte) {
				_, _ = BuildNack(buf, 1, NackOverflow, false)
			},
			want: Frame{Type: FrameNack, Seq: 1, Flags: NackOverflow, Length: NackFrameLength},
		},
		{
			name: "status",
			build: func(buf []byte) {
				_, _ = BuildStatus(buf, NackBackpressure)
			},
			want: Frame{Type: FrameStatus, StatusResponse: true, Flags: NackBackpressure, Length: StatusFrameLength},
		},
		{
			name: "null",
			build: func(buf []byte) {
				_ = BuildNull(buf, NullInfo{RxSeq: 1, TxSeq: 1})
			},
			want: Frame{Type: FrameNull, Length: NullFrameLength},
		},
		{
			name: "log",
			build: func(buf []byte) {
				_, _ = BuildLog(buf, 4, []byte("hi"))
			},
			want:    Frame{Type: FrameLog, Flags: 4, Length: LogHeaderSize + 2},
			payload: []byte("hi"),
		},
		{
			name: "data length beyond transfer",
			build: func(buf []byte) {
				_, _ = BuildData(buf, 0, true, nil)
				buf[2] = 0xFF
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			build: func(buf []byte) {
				buf[0] = 0x70
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := newBuffer()
			tt.build(buf)
			f, err := Parse(buf)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got frame %+v", f)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			payload := f.Payload
			f.Payload = nil
			if !reflect.DeepEqual(f, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", f, tt.want)
			}
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload = %q, want %q", payload, tt.payload)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil)
	if err == nil {
		t.Fatal("expected error for empty buffer")
	}
	if !strings.Contains(err.Error(), "buffer too short") {
		t.Errorf("error = %v, want buffer too short", err)
	}
}

func TestParseNull(t *testing.T) {
	buf := newBuffer()
	info := NullInfo{
		RxSeq:    3,
		TxSeq:    1,
		Firmware: FirmwareVersion{Major: 1, Minor: 4, Patch: 0, Build: 12},
	}
	if err := BuildNull(buf, info); err != nil {
		t.Fatalf("BuildNull: %v", err)
	}

	got, err := ParseNull(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info.Version = Version
	if got != info {
		t.Errorf("ParseNull() = %+v, want %+v", got, info)
	}

	buf[0] = 0x20
	if _, err := ParseNull(buf); !IsFrameError(err) {
		t.Errorf("ParseNull() on DATA header error = %v, want FrameError", err)
	}
}

func TestFrameTypeString(t *testing.T) {
	tests := []struct {
		ft   FrameType
		want string
	}{
		{FrameData, "DATA"},
		{FrameAck, "ACK"},
		{FrameNack, "NACK"},
		{FrameStatus, "STATUS"},
		{FrameLog, "LOG"},
		{FrameNull, "NULL"},
		{FrameType(0x9), "UNKNOWN(0x9)"},
	}
	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.want {
			t.Errorf("FrameType(0x%X).String() = %q, want %q", byte(tt.ft), got, tt.want)
		}
	}
}

func TestNackFlagString(t *testing.T) {
	if got := NackFlagString(NackCRC | NackDuplicate); got != "CRC|DUPLICATE" {
		t.Errorf("NackFlagString() = %q", got)
	}
	if got := NackFlagString(0); got != "none" {
		t.Errorf("NackFlagString(0) = %q", got)
	}
	if got := NackFlagString(NackOther | 0x02); got != "OTHER|0x02" {
		t.Errorf("NackFlagString() = %q", got)
	}
}

func TestFrameErrorMessage(t *testing.T) {
	err := &FrameError{Operation: "parse data", Reason: ReasonPayloadLength, Detail: "200 > 123"}
	if got := err.Error(); got != "parse data failed: invalid payload length (0x02): 200 > 123" {
		t.Errorf("Error() = %q", got)
	}
	err = &FrameError{Operation: "parse", Reason: 0x04}
	if got := err.Error(); got != "parse failed: unknown reason 0x04 (0x04)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSequence(t *testing.T) {
	want := []uint8{1, 2, 3, 0, 1}
	seq := uint8(0)
	for i, w := range want {
		seq = Sequence(seq)
		if seq != w {
			t.Fatalf("step %d: Sequence = %d, want %d", i, seq, w)
		}
	}
}
