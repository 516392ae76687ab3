// zlogsqld runs the chat-log pipeline as a standalone daemon.
//
// Events arrive on stdin, one per line, tab-separated:
//
//	network<TAB>buffer<TAB>nick<TAB>line
//
// A host bouncer embedding pkg/zlog directly does not need this shim.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"zlogsql/internal/app"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./zlogsql.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	// Feed stdin events until EOF; the daemon itself runs until signaled.
	go feed(a)

	<-ctx.Done()
	_ = a.Stop(context.Background())
}

func feed(a *app.App) {
	m := a.Module()
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parts := strings.SplitN(raw, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		m.Put(parts[0], parts[1], parts[2], parts[3])
	}
}
