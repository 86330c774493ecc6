// hikemap serves the import and profile backend of the map viewer: uploads
// of KML/GPX documents become stored layers, and the profile endpoint turns
// drawn lines into elevation statistics.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"hikemap/pkg/api"
	"hikemap/pkg/database"
	"hikemap/pkg/features"
	"hikemap/pkg/icons"
	"hikemap/pkg/importer"
	"hikemap/pkg/kml"
	"hikemap/pkg/profile"
	"hikemap/pkg/projection"
)

var domain = flag.String("domain", "", "Use 80 and 443 ports. Automatic HTTPS cert via Let's Encrypt.")
var dbType = flag.String("db-type", "sqlite", "Type of the database driver: genji, sqlite, duckdb, or pgx (postgresql)")
var dbPath = flag.String("db-path", "", "Path to the database file (defaults to the current folder, applicable for genji, sqlite drivers.)")
var dbConn = flag.String("db-conn", "", "Raw DSN for network drivers (overrides db-host and friends)")
var dbHost = flag.String("db-host", "127.0.0.1", "Database host (applicable for pgx driver)")
var dbPort = flag.Int("db-port", 5432, "Database port (applicable for pgx driver)")
var dbUser = flag.String("db-user", "postgres", "Database user (applicable for pgx driver)")
var dbPass = flag.String("db-pass", "", "Database password (applicable for pgx driver)")
var dbName = flag.String("db-name", "hikemap", "Database name (applicable for pgx driver)")
var pgSSLMode = flag.String("pg-ssl-mode", "prefer", "PostgreSQL SSL mode: disable, allow, prefer, require, verify-ca, or verify-full")
var port = flag.Int("port", 8765, "Port for running the server")
var version = flag.Bool("version", false, "Show the application version")
var epsg = flag.Int("projection", 2056, "Working projection EPSG code: 2056 (Swiss LV95) or 3857 (Web Mercator)")
var profileBackend = flag.String("profile-backend", "", "Base URL of the elevation backend (empty disables /api/profile)")
var iconsBackend = flag.String("icons-backend", "", "Base URL of the icon catalog service (empty resolves icons without a catalog)")

var CompileVersion = "dev"

// withServerHeader wraps any http.Handler, adding the
// "Server: hikemap/<CompileVersion>" header.  A HEAD request to "/" gets an
// immediate 200 so load balancers see the service is alive.
func withServerHeader(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "hikemap/"+CompileVersion)

		if r.Method == http.MethodHead && r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// serveWithDomain runs:
//   - :80  for ACME HTTP-01 plus a 301 redirect to https://<domain>/...
//   - :443 for HTTPS with automatic Let's Encrypt certificates.
//
// When autocert cannot issue a certificate for a host/SNI, the server still
// hands out the previously obtained fallback certificate instead of failing
// the handshake.  All errors are only logged.
func serveWithDomain(domain string, handler http.Handler) {
	certMgr := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache("certs"),
		HostPolicy: func(ctx context.Context, host string) error {
			// Allow the bare domain and www.<domain>.
			if host == domain || host == "www."+domain {
				return nil
			}
			// IP address: do not block, just never request a cert.
			if net.ParseIP(host) != nil {
				return nil
			}
			return errors.New("acme/autocert: host not configured")
		},
	}

	go func() {
		mux80 := http.NewServeMux()
		mux80.Handle("/.well-known/acme-challenge/", certMgr.HTTPHandler(nil))
		mux80.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			target := "https://" + domain + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})

		log.Printf("HTTP  server (ACME+redirect) ➜ :80")
		if err := (&http.Server{
			Addr:              ":80",
			Handler:           mux80,
			ReadHeaderTimeout: 10 * time.Second,
		}).ListenAndServe(); err != nil {
			log.Printf("HTTP  server error: %v", err)
		}
	}()

	// Daily certificate check so renewals happen before expiry.
	go func() {
		t := time.NewTicker(24 * time.Hour)
		defer t.Stop()
		for range t.C {
			if _, err := certMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err != nil {
				log.Printf("autocert renewal check: %v", err)
			}
		}
	}()

	tlsCfg := certMgr.TLSConfig()
	tlsCfg.MinVersion = tls.VersionTLS10
	tlsCfg.NextProtos = append([]string{"http/1.0"}, tlsCfg.NextProtos...)

	// Fallback certificate for IPs and odd SNI values.
	var defaultCert *tls.Certificate
	go func() {
		for defaultCert == nil {
			if c, err := certMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err == nil {
				defaultCert = c
			}
			time.Sleep(time.Minute)
		}
	}()
	tlsCfg.GetCertificate = func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
		c, err := certMgr.GetCertificate(chi)
		if err == nil {
			return c, nil
		}
		if defaultCert != nil {
			return defaultCert, nil
		}
		return nil, err
	}

	log.Printf("HTTPS server for %s ➜ :443 (TLS ≥1.0, ALPN h2/http1.1/1.0)", domain)
	if err := (&http.Server{
		Addr:              ":443",
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}).ListenAndServeTLS("", ""); err != nil {
		log.Printf("HTTPS server error: %v", err)
	}
}

// loadIconCatalog fetches the icon catalog once at startup.  The catalog is
// optional: with none available, icons are still synthesized from their
// URLs, so a catalog outage only degrades anchors.
func loadIconCatalog(baseURL string) *icons.Catalog {
	if baseURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog, err := icons.FetchCatalog(ctx, baseURL)
	if err != nil {
		log.Printf("icon catalog unavailable, continuing without it: %v", err)
		return nil
	}
	log.Printf("icon catalog loaded: %d sets", len(catalog.Names()))
	return catalog
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("hikemap version %s\n", CompileVersion)
		return
	}

	if *domain != "" && runtime.GOOS != "windows" && os.Geteuid() != 0 {
		log.Println("⚠  Binding to :80 / :443 requires super-user rights; run with sudo or as root.")
	}

	proj, ok := projection.ByEPSG(*epsg)
	if !ok {
		log.Fatalf("unsupported projection EPSG:%d", *epsg)
	}

	db, err := database.NewDatabase(database.Config{
		DBType:    *dbType,
		DBPath:    *dbPath,
		DBConn:    *dbConn,
		DBHost:    *dbHost,
		DBPort:    *dbPort,
		DBUser:    *dbUser,
		DBPass:    *dbPass,
		DBName:    *dbName,
		PGSSLMode: *pgSSLMode,
		Port:      *port,
	})
	if err != nil {
		log.Fatalf("DB init: %v", err)
	}

	deser := &features.Deserializer{
		Catalog: loadIconCatalog(*iconsBackend),
		Quirks:  kml.Quirks,
		Logf:    log.Printf,
	}
	imp := importer.New(deser, proj)

	var prof *profile.Client
	if *profileBackend != "" {
		prof = profile.NewClient(*profileBackend)
	}

	mux := http.NewServeMux()
	api.NewHandler(db, imp, prof, log.Printf).Register(mux)
	rootHandler := withServerHeader(mux)

	if *domain != "" {
		go serveWithDomain(*domain, rootHandler)
	} else {
		addr := fmt.Sprintf(":%d", *port)
		go func() {
			log.Printf("HTTP server ➜ http://localhost%s", addr)
			if err := http.ListenAndServe(addr, rootHandler); err != nil {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	// Background index build: listeners are already up, queries are just
	// slower until the indexes exist.
	ctxIdx, cancelIdx := context.WithCancel(context.Background())
	defer cancelIdx()
	db.EnsureIndexesAsync(ctxIdx, log.Printf)

	// Keep the main goroutine alive.
	select {}
}
