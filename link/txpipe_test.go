package link

import "testing"

func TestInWindow(t *testing.T) {
	tests := []struct {
		name      string
		confirmed uint8
		current   uint8
		seq       uint8
		want      bool
	}{
		{name: "next fragment", confirmed: 0, current: 1, seq: 1, want: true},
		{name: "already confirmed", confirmed: 1, current: 1, seq: 1, want: false},
		{name: "ahead of current", confirmed: 0, current: 1, seq: 2, want: false},
		{name: "window of two", confirmed: 0, current: 2, seq: 1, want: true},
		{name: "wraps", confirmed: 3, current: 0, seq: 0, want: true},
		{name: "wraps behind", confirmed: 3, current: 0, seq: 3, want: false},
		{name: "wraps window", confirmed: 2, current: 1, seq: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := txPipe{seqConfirmed: tt.confirmed, seqCurrent: tt.current}
			if got := p.inWindow(tt.seq); got != tt.want {
				t.Errorf("inWindow(%d) = %v, want %v", tt.seq, got, tt.want)
			}
		})
	}
}

func TestCommit(t *testing.T) {
	tests := []struct {
		name          string
		pipe          txPipe
		seq           uint8
		wantAcked     int
		wantConfirmed uint8
		wantCompleted bool
	}{
		{
			name:          "single fragment",
			pipe:          txPipe{size: 300, sent: 123, seqCurrent: 1},
			seq:           1,
			wantAcked:     123,
			wantConfirmed: 1,
		},
		{
			name:          "last fragment",
			pipe:          txPipe{size: 300, sent: 300, acked: 246, seqConfirmed: 2, seqCurrent: 3},
			seq:           3,
			wantAcked:     300,
			wantConfirmed: 3,
			wantCompleted: true,
		},
		{
			name:          "two fragments",
			pipe:          txPipe{size: 300, sent: 246, seqCurrent: 2},
			seq:           2,
			wantAcked:     246,
			wantConfirmed: 2,
		},
		{
			name:          "wrap",
			pipe:          txPipe{size: 10, sent: 10, seqConfirmed: 3, seqCurrent: 0},
			seq:           0,
			wantAcked:     10,
			wantConfirmed: 0,
			wantCompleted: true,
		},
		{
			name:          "capped at outstanding bytes",
			pipe:          txPipe{size: 50, sent: 50, seqCurrent: 1},
			seq:           1,
			wantAcked:     50,
			wantConfirmed: 1,
			wantCompleted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.pipe
			p.commit(tt.seq, 123)
			if p.acked != tt.wantAcked || p.seqConfirmed != tt.wantConfirmed || p.completed != tt.wantCompleted {
				t.Errorf("acked=%d confirmed=%d completed=%v, want %d/%d/%v",
					p.acked, p.seqConfirmed, p.completed,
					tt.wantAcked, tt.wantConfirmed, tt.wantCompleted)
			}
		})
	}
}
