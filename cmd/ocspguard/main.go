// ocspguard is a small command-line driver for the library: given a leaf and
// issuer certificate on disk, it resolves OCSP revocation status through the
// package's own cache and transport rather than letting anything else make
// the request.
package main

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	ocspguard "github.com/privacyproxy/ocspguard"
	"golang.org/x/crypto/ocsp"
)

func main() {
	leafPath := flag.String("leaf", "", "path to the leaf certificate (PEM)")
	issuerPath := flag.String("issuer", "", "path to the issuer certificate (PEM)")
	configPath := flag.String("config", "", "path to an ocspguard_config.json file (optional)")
	cacheDir := flag.String("cache-dir", "", "directory for the on-disk response cache (optional)")
	timeout := flag.Duration("timeout", 10*time.Second, "per-lookup timeout")
	flag.Parse()

	if *leafPath == "" || *issuerPath == "" {
		log.Fatal("both -leaf and -issuer are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer func() {
		signal.Stop(sig)
		cancel()
	}()
	go func() {
		<-sig
		log.Println("caught interrupt, canceling lookup")
		cancel()
	}()

	leaf := readCert(*leafPath)
	issuer := readCert(*issuerPath)

	opts := ocspguard.Options{Timeout: *timeout, Logger: ocspguard.DefaultLogger()}
	if *configPath != "" {
		cfg, err := ocspguard.LoadFileConfig(*configPath)
		if err != nil {
			log.Fatalf("loading config %v: %v", *configPath, err)
		}
		if err := cfg.ApplyTo(&opts); err != nil {
			log.Fatalf("applying config %v: %v", *configPath, err)
		}
	}

	cache := ocspguard.NewCache(opts.Logger)

	var store ocspguard.Store
	if *cacheDir != "" {
		var err error
		store, err = ocspguard.NewFileStoreAt(*cacheDir)
		if err != nil {
			log.Fatalf("opening cache dir %v: %v", *cacheDir, err)
		}
		if err := cache.Load(store, "responses"); err != nil {
			log.Fatalf("loading cached responses: %v", err)
		}
	}

	result, err := cache.Lookup(ctx, leaf, issuer, ocspguard.LookupOptions{
		Timeout: opts.Timeout,
	})
	if err != nil {
		log.Fatalf("lookup failed: %v", err)
	}

	if store != nil {
		if err := cache.Persist(store, "responses"); err != nil {
			log.Fatalf("persisting cache: %v", err)
		}
	}

	status := "NOT SUCCESSFUL"
	if result.Response.Successful() {
		status = "UNKNOWN"
		if parsed, err := ocsp.ParseResponse(result.Response.Raw, nil); err == nil {
			switch parsed.Status {
			case ocsp.Good:
				status = "GOOD"
			case ocsp.Revoked:
				status = "REVOKED"
			}
		}
		if result.Response.Expired(time.Now()) {
			status += " (stale)"
		}
	}
	fmt.Printf("subject=%q status=%s cached=%v\n", leaf.Subject.CommonName, status, result.Cached)
}

func readCert(path string) *x509.Certificate {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("reading %v: %v", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		log.Fatalf("%v: no PEM block found", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		log.Fatalf("%v: %v", path, err)
	}
	return cert
}
