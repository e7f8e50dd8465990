// Command kvclient is a minimal interactive client over the session
// protocol (spec.md §6): it connects via the intake pipe, then issues
// SUBSCRIBE/UNSUBSCRIBE commands read from stdin and prints incoming
// notification frames. Parsing of interactive client commands is out of
// scope of the core (spec.md §1); this is a thin reference driver.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/adred-codev/kvnotify/internal/fifo"
	"github.com/adred-codev/kvnotify/internal/session"
)

// These must match the server's KV_MAX_PATH_LEN/KV_MAX_KEY_LEN/
// KV_MAX_VALUE_LEN defaults; the wire protocol has no handshake to
// negotiate them (spec.md §6 fixes frame sizes by configuration, not
// discovery).
const (
	defaultMaxPathLen = 256
	defaultMaxKeyLen  = 256
	defaultMaxValLen  = 1024
)

// maxSubscriptions caps this client's local subscription set, mirroring
// the original client's MAX_NUMBER_SUB/SUBS_LIST bookkeeping
// (client/main.c): the original rejects a subscribe locally once its
// list is full rather than ever sending it to the server. The original's
// exact cap lives in a constants header not present in this retrieval
// pack, so this is a documented placeholder rather than a cited value.
const maxSubscriptions = 64

const helpText = `commands:
  subscribe KEY    subscribe to KEY's updates
  unsubscribe KEY  remove a subscription to KEY
  disconnect       end the session
  help             show this text`

func main() {
	os.Exit(run())
}

func run() int {
	clientID := ""
	intakePath := ""
	for i, a := range os.Args[1:] {
		switch a {
		case "-client-id":
			if i+2 < len(os.Args) {
				clientID = os.Args[i+2]
			}
		case "-intake-pipe":
			if i+2 < len(os.Args) {
				intakePath = os.Args[i+2]
			}
		}
	}
	if clientID == "" || intakePath == "" {
		fmt.Fprintln(os.Stderr, "usage: kvclient -client-id ID -intake-pipe PATH")
		return 1
	}

	dir := fmt.Sprintf("/tmp/kvnotify-client-%s", clientID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Fprintln(os.Stderr, "kvclient: mkdir:", err)
		return 1
	}
	reqPath := dir + "/request"
	respPath := dir + "/response"
	notifPath := dir + "/notification"

	for _, p := range []string{reqPath, respPath, notifPath} {
		if err := fifo.Ensure(p, 0o600); err != nil {
			fmt.Fprintln(os.Stderr, "kvclient: ensure fifo:", err)
			return 1
		}
	}

	intake, err := fifo.OpenWriter(intakePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvclient: open intake:", err)
		return 1
	}

	frame := session.EncodeConnectFrame(session.ConnectFrame{
		RequestPath:      reqPath,
		ResponsePath:     respPath,
		NotificationPath: notifPath,
	}, defaultMaxPathLen)

	// Open order matches the session worker's complement: response for
	// reading before the server opens it for writing, then request for
	// writing, then notification for reading (spec.md §5).
	respReaderCh := make(chan *os.File, 1)
	go func() {
		f, err := fifo.OpenReader(respPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "kvclient: open response:", err)
			respReaderCh <- nil
			return
		}
		respReaderCh <- f
	}()

	if _, err := intake.Write(frame); err != nil {
		fmt.Fprintln(os.Stderr, "kvclient: write connect frame:", err)
		return 1
	}

	resp := <-respReaderCh
	if resp == nil {
		return 1
	}

	req, err := fifo.OpenWriter(reqPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvclient: open request:", err)
		return 1
	}
	notif, err := fifo.OpenReader(notifPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvclient: open notification:", err)
		return 1
	}

	// The server writes the connect ack only after all three pipes are open.
	ack := make([]byte, 2)
	if _, err := resp.Read(ack); err != nil || ack[1] != session.StatusSuccess {
		fmt.Fprintln(os.Stderr, "kvclient: connect rejected")
		return 1
	}

	go printNotifications(notif, defaultMaxKeyLen, defaultMaxValLen)

	fmt.Println("connected. type 'help' for commands")
	subs := make(map[string]struct{}, maxSubscriptions)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "subscribe":
			if len(fields) != 2 {
				fmt.Println("usage: subscribe KEY")
				continue
			}
			key := fields[1]
			// Local dedup/cap mirrors the original client's SUBS_LIST walk
			// before it ever writes to the wire (client/main.c): a repeat
			// or over-cap subscribe never reaches the server.
			if _, already := subs[key]; already {
				fmt.Println("already subscribed to", key)
				continue
			}
			if len(subs) >= maxSubscriptions {
				fmt.Println("subscription list full")
				continue
			}
			sendKeyCommand(req, resp, session.OpSubscribe, key)
			subs[key] = struct{}{}
		case "unsubscribe":
			if len(fields) != 2 {
				fmt.Println("usage: unsubscribe KEY")
				continue
			}
			key := fields[1]
			if _, subscribed := subs[key]; !subscribed {
				fmt.Println("not subscribed to", key)
				continue
			}
			sendKeyCommand(req, resp, session.OpUnsubscribe, key)
			delete(subs, key)
		case "help":
			fmt.Println(helpText)
		case "disconnect":
			req.Write([]byte{session.OpDisconnect})
			return 0
		default:
			fmt.Println("unknown command")
		}
	}
	return 0
}

func sendKeyCommand(req *os.File, resp *os.File, opcode byte, key string) {
	payload := make([]byte, 1+defaultMaxKeyLen)
	payload[0] = opcode
	copy(payload[1:], key)
	if _, err := req.Write(payload); err != nil {
		fmt.Fprintln(os.Stderr, "kvclient: write command:", err)
		return
	}
	ack := make([]byte, 2)
	if _, err := resp.Read(ack); err != nil {
		fmt.Fprintln(os.Stderr, "kvclient: read ack:", err)
		return
	}
	fmt.Printf("ack: opcode=%d status=%c\n", ack[0], ack[1])
}

func printNotifications(notif *os.File, maxKeyLen, maxValLen int) {
	buf := make([]byte, maxKeyLen+1+maxValLen+1)
	for {
		if _, err := notif.Read(buf); err != nil {
			return
		}
		key := strings.TrimRight(string(buf[:maxKeyLen+1]), "\x00")
		value := strings.TrimRight(string(buf[maxKeyLen+1:]), "\x00")
		fmt.Printf("notification: %s = %s\n", key, value)
	}
}
