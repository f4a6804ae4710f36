package sshcore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"al.essio.dev/pkg/shellescape"
	"golang.org/x/crypto/ssh"
)

const scpChunkSize = 16 * 1024
const scpChunkTimeout = 16 * time.Second

// UploadFile resolves the Session's live transport and delegates to the
// package-level UploadFile, the same convenience Exec/Run/System/Cmd give
// callers over the lower-level client-based functions.
func (s *Session) UploadFile(ctx context.Context, localPath, remotePath string) error {
	client, err := s.transport()
	if err != nil {
		return err
	}
	return UploadFile(ctx, client, localPath, remotePath)
}

// UploadFile implements the legacy SCP sink protocol: open a channel, run
// `scp -t <remotePath>` on the remote, send the "C0644 <size> <basename>"
// metadata line, stream localPath in 16 KiB chunks, then signal
// end-of-data. basename is derived from remotePath (not localPath) per
// §9's resolved Open Question: the remote shell only ever sees remotePath.
func UploadFile(ctx context.Context, client *ssh.Client, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	ch, reqs, err := openSessionChannel(client)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := scpStart(ch, remotePath); err != nil {
		return err
	}

	if err := scpSendMetadata(ch, remotePath, info.Size()); err != nil {
		return err
	}

	// cr's background reader must not start until after the metadata-line
	// acknowledgement above has been read synchronously off ch — starting it
	// earlier lets it steal that ack byte as a buffered (and then ignored)
	// evData event, leaving readAckByte blocked forever on a byte that
	// already arrived.
	cr := newChannelReader(ch, reqs, true)

	if err := scpStreamData(ctx, ch, cr, f); err != nil {
		return err
	}

	return scpFinish(ch)
}

// scpStart invokes `scp -t <remotePath>` and reads the single acknowledgement
// byte, the Open -> TxStart transition.
func scpStart(ch ssh.Channel, remotePath string) error {
	cmd := fmt.Sprintf("scp -t %s", shellescape.Quote(remotePath))
	ok, err := ch.SendRequest("exec", true, ssh.Marshal(execRequestMsg{Command: cmd}))
	if err != nil {
		return err
	}
	if !ok {
		return ErrScpStartFailed
	}

	ack := make([]byte, 1)
	if _, err := io.ReadFull(ch, ack); err != nil {
		return fmt.Errorf("%w: %v", ErrScpStartFailed, err)
	}
	if ack[0] != 0 {
		return ErrScpStartFailed
	}
	return nil
}

// scpSendMetadata writes the TxStart -> TxData metadata line and consumes
// its acknowledgement.
func scpSendMetadata(ch ssh.Channel, remotePath string, size int64) error {
	basename := path.Base(remotePath)
	line := fmt.Sprintf("C0644 %d %s\n", size, basename)
	if _, err := ch.Write([]byte(line)); err != nil {
		return err
	}

	ack, err := readAckByte(ch)
	if err != nil {
		return err
	}
	if ack != 0 {
		return ErrScpConfirmationFailed
	}
	return nil
}

// readAckByte reads a single acknowledgement byte directly from ch. Used
// only outside the concurrent streaming phase, where no other goroutine is
// competing to read the channel.
func readAckByte(ch ssh.Channel) (byte, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(ch, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// scpStreamData implements step 4: stream f in 16 KiB chunks under a
// per-chunk timeout, concurrently draining channel events for back-channel
// errors (stderr text, an early exit-status, or channel-end).
func scpStreamData(ctx context.Context, ch ssh.Channel, cr *channelReader, f *os.File) error {
	type readResult struct {
		data []byte
		err  error
	}
	reads := make(chan readResult)
	go func() {
		buf := make([]byte, scpChunkSize)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				reads <- readResult{data: chunk}
			}
			if err != nil {
				if err == io.EOF {
					close(reads)
				} else {
					reads <- readResult{err: err}
					close(reads)
				}
				return
			}
		}
	}()

	for {
		select {
		case r, ok := <-reads:
			if !ok {
				return nil
			}
			if r.err != nil {
				return r.err
			}
			if err := writeChunkWithTimeout(ctx, ch, r.data); err != nil {
				return err
			}

		case ev := <-cr.events:
			switch ev.kind {
			case evExtData:
				return &RemoteScpError{Text: string(ev.data)}
			case evExitStatus:
				return &RemoteScpExitedEarly{Code: ev.exitCode}
			case evExitSignal:
				return &RemoteScpExitedEarly{Code: 255}
			case evChannelEnd:
				return ErrChannelClosedDuringTransfer
			}
			// evData: acknowledgement bytes are consumed synchronously
			// outside the streaming phase; no data is expected here, so
			// any stray byte is ignored (window-adjust/keepalive are
			// handled transparently by golang.org/x/crypto/ssh itself).
		}
	}
}

func writeChunkWithTimeout(ctx context.Context, ch ssh.Channel, chunk []byte) error {
	chunkCtx, cancel := context.WithTimeout(ctx, scpChunkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := ch.Write(chunk)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-chunkCtx.Done():
		return ErrWriteTimedOut
	}
}

// scpFinish implements step 5: write the terminating zero byte, read its
// acknowledgement, send channel EOF, and close.
func scpFinish(ch ssh.Channel) error {
	if _, err := ch.Write([]byte{0}); err != nil {
		return err
	}

	ack, err := readAckByte(ch)
	if err != nil {
		return err
	}
	if ack != 0 {
		return ErrScpPostDataConfirmationFailed
	}

	return ch.CloseWrite()
}
