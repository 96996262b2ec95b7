package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9090", "TCP event feed address")
	wsURL := flag.String("ws", "", "read events from this websocket URL instead, e.g. ws://127.0.0.1:8090/api/realtime")
	retry := flag.Duration("retry", 2*time.Second, "delay between reconnect attempts")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		var err error
		if *wsURL != "" {
			err = watchWS(ctx, *wsURL, os.Stdout, log)
		} else {
			err = watchTCP(ctx, *addr, os.Stdout, log)
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("retry", *retry).Msg("disconnected")
		select {
		case <-ctx.Done():
			return
		case <-time.After(*retry):
		}
	}
}

func watchTCP(ctx context.Context, addr string, out io.Writer, log zerolog.Logger) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	log.Info().Str("addr", addr).Msg("connected")

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		printEvent(out, sc.Bytes())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func watchWS(ctx context.Context, url string, out io.Writer, log zerolog.Logger) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()
	log.Info().Str("url", url).Msg("connected")

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(out, msg)
	}
}

func printEvent(out io.Writer, line []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, line, "", "  "); err != nil {
		fmt.Fprintln(out, string(line))
		return
	}
	fmt.Fprintln(out, buf.String())
}
