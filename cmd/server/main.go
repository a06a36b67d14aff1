package main

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"so-http11-embed/internal/handlers"
	"so-http11-embed/internal/http11"
	"so-http11-embed/internal/server"
	"so-http11-embed/internal/util"
)

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// loadContentTypes registra los MIME types de los ficheros mime.types que
// existan.
func loadContentTypes(paths ...string) {
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		if err := http11.AddContentTypes(f); err != nil {
			log.Printf("mime types %s: %v", p, err)
		}
		f.Close()
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <directory> [port]\n"+
			"TLS se activa definiendo TLS_CERT y TLS_KEY.\n", os.Args[0])
		os.Exit(2)
	}
	dir := os.Args[1]
	port := 80
	if len(os.Args) > 2 {
		p, err := util.ParseULong(os.Args[2], 10)
		if err != nil {
			log.Fatalf("invalid port: %v", err)
		}
		port = int(p)
	}

	loadContentTypes("/etc/mime.types", dir+"/.mime.types")

	srv := server.New(port)
	srv.SetSocketTimeout(time.Duration(getenvInt("SOCKET_TIMEOUT_MS", 10000)) * time.Millisecond)
	if crt, key := os.Getenv("TLS_CERT"), os.Getenv("TLS_KEY"); crt != "" && key != "" {
		cert, err := tls.LoadX509KeyPair(crt, key)
		if err != nil {
			log.Fatalf("TLS keypair: %v", err)
		}
		srv.SetListenerFactory(server.TLSListenerFactory{
			Config: &tls.Config{Certificates: []tls.Certificate{cert}},
		})
	}

	host := srv.VirtualHost("") // host por defecto
	host.SetAllowGeneratedIndex(true)
	fh, err := handlers.NewFileHandler(dir)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	if err := host.AddContext("/", fh); err != nil {
		log.Fatalf("context: %v", err)
	}
	err = host.AddRoutes([]http11.Route{
		{Path: "/api/time", Handler: func(req *http11.Request, resp *http11.Response) (int, error) {
			resp.Headers().Add("Content-Type", "text/plain")
			return 0, resp.Send(200, time.Now().Format("2006-01-02 15:04:05"))
		}},
	})
	if err != nil {
		log.Fatalf("routes: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("listen failed: %v", err)
	}
	log.Printf("HTTP/1.1 server listening on :%d", port)

	// cierre ordenado
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	srv.Stop()
}
