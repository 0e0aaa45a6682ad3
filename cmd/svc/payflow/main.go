package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rainycape/memcache"
	"github.com/rs/cors"
	"github.com/samuel/go-metrics/metrics"
	"github.com/samuel/go-metrics/reporter"
	"github.com/sprucehealth/payflow/boot"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/dal"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/guard"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/handlers"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/payment"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/vault"
	"github.com/sprucehealth/payflow/libs/conc"
	"github.com/sprucehealth/payflow/libs/dbutil"
	"github.com/sprucehealth/payflow/libs/golog"
	"github.com/sprucehealth/payflow/libs/httputil"
	"github.com/sprucehealth/payflow/libs/ratelimit"
	"github.com/sprucehealth/payflow/libs/sig"
)

var config struct {
	httpAddr    string
	env         string
	behindProxy bool

	// Gateway
	gatewayURL    string
	gatewayAPIKey string
	// currencyAccounts maps currencies to processor accounts, e.g.
	// "USD:acct_us,GBP:acct_uk"
	currencyAccounts string

	// Database
	dbHost     string
	dbPort     int64
	dbName     string
	dbUser     string
	dbPassword string
	dbCACert   string
	dbTLSCert  string
	dbTLSKey   string

	// Memcached
	mcHosts string

	// Guard
	nonceSecrets    string
	usedNonceTTL    time.Duration
	rateLimitMax    int
	rateLimitWindow int
	adminOrigin     string

	// Error messages
	avsMessage string

	// CORS
	corsOrigins string

	// Metrics
	metricsSource   string
	libratoUsername string
	libratoToken    string
}

func init() {
	flag.StringVar(&config.httpAddr, "http", "0.0.0.0:8000", "listen for http on `host:port`")
	flag.StringVar(&config.env, "env", "undefined", "`Environment`")
	flag.BoolVar(&config.behindProxy, "behind.proxy", false, "Trust proxy set headers (X-Forwarded-For) for client identity")

	// Gateway
	flag.StringVar(&config.gatewayURL, "gateway.url", "", "Base `URL` of the card processor API")
	flag.StringVar(&config.gatewayAPIKey, "gateway.api.key", "", "API `key` for the card processor")
	flag.StringVar(&config.currencyAccounts, "gateway.accounts", "", "Comma separated `currency:account` pairs for processor account routing")

	// Database
	flag.StringVar(&config.dbHost, "db.host", "", "mysql database `host`")
	flag.Int64Var(&config.dbPort, "db.port", 3306, "mysql database `port`")
	flag.StringVar(&config.dbName, "db.name", "", "mysql database `name`")
	flag.StringVar(&config.dbUser, "db.user", "", "mysql database `user`")
	flag.StringVar(&config.dbPassword, "db.password", "", "mysql database `password`")
	flag.StringVar(&config.dbCACert, "db.ca.cert", "", "mysql database TLS CA certificate `PEM`")
	flag.StringVar(&config.dbTLSCert, "db.tls.cert", "", "mysql database TLS client certificate `PEM`")
	flag.StringVar(&config.dbTLSKey, "db.tls.key", "", "mysql database TLS client key `PEM`")

	// Memcached
	flag.StringVar(&config.mcHosts, "mc.hosts", "", "Comma separated list of memcached `hosts`")

	// Guard
	flag.StringVar(&config.nonceSecrets, "nonce.secrets", "", "Comma separated `secrets` for nonce signing, first one used for new nonces")
	flag.DurationVar(&config.usedNonceTTL, "nonce.used.ttl", time.Hour*2, "How long consumed nonces stay blacklisted")
	flag.IntVar(&config.rateLimitMax, "ratelimit.max", 5, "Maximum checkout requests per identity per window")
	flag.IntVar(&config.rateLimitWindow, "ratelimit.window", 60, "Rate limit window in `seconds`")
	flag.StringVar(&config.adminOrigin, "admin.origin", "", "`Origin` of the administrative site, required for privileged actions")

	// Error messages
	flag.StringVar(&config.avsMessage, "messages.avs", "", "Override `message` shown for address verification failures")

	// CORS
	flag.StringVar(&config.corsOrigins, "cors.origins", "", "Comma separated list of allowed CORS `origins` (empty disables CORS)")

	// Metrics
	flag.StringVar(&config.metricsSource, "metrics.source", "", "`Source` for metrics (e.g. hostname)")
	flag.StringVar(&config.libratoUsername, "librato.username", "", "Librato metrics `username`")
	flag.StringVar(&config.libratoToken, "librato.token", "", "Librato metrics auth `token`")
}

func main() {
	boot.ParseFlags("PAYFLOW_")

	metricsRegistry := metrics.NewRegistry()
	handler := setupHandler(metricsRegistry)

	if config.metricsSource == "" {
		hostname, err := os.Hostname()
		if err == nil {
			config.metricsSource = fmt.Sprintf("%s-%s-%s", config.env, "payflow", hostname)
		} else {
			config.metricsSource = "payflow"
			golog.Warningf("Unable to get local hostname: %s", err)
		}
	}
	metricsRegistry.Add("runtime", metrics.RuntimeMetrics)
	if config.libratoUsername != "" && config.libratoToken != "" {
		statsReporter := reporter.NewLibratoReporter(
			metricsRegistry, time.Minute, true, config.libratoUsername,
			config.libratoToken, config.metricsSource)
		statsReporter.Start()
		defer statsReporter.Stop()
	}

	conc.Go(func() {
		serve(handler)
	})
	boot.WaitForTermination()
}

func setupHandler(metricsRegistry metrics.Registry) httputil.ContextHandler {
	if config.gatewayURL == "" || config.gatewayAPIKey == "" {
		golog.Fatalf("gateway.url and gateway.api.key are required")
	}
	gw := gateway.NewClient(strings.TrimRight(config.gatewayURL, "/"), config.gatewayAPIKey)

	accounts, err := parseCurrencyAccounts(config.currencyAccounts)
	if err != nil {
		golog.Fatalf("Failed to parse gateway.accounts: %s", err)
	}
	if len(accounts) == 0 {
		golog.Fatalf("At least one currency:account pair is required in gateway.accounts")
	}

	db, err := dbutil.ConnectMySQL(&dbutil.DBConfig{
		Host:     config.dbHost,
		Port:     config.dbPort,
		Name:     config.dbName,
		User:     config.dbUser,
		Password: config.dbPassword,
		CACert:   config.dbCACert,
		TLSCert:  config.dbTLSCert,
		TLSKey:   config.dbTLSKey,
	})
	if err != nil {
		golog.Fatalf("Failed to connect to mysql: %s", err)
	}

	var memcacheCli *memcache.Client
	if config.mcHosts != "" {
		var hosts []string
		for _, h := range strings.Split(config.mcHosts, ",") {
			hosts = append(hosts, strings.TrimSpace(h))
		}
		memcacheCli, err = memcache.New(hosts...)
		if err != nil {
			golog.Fatalf("Failed to create memcached client: %s", err)
		}
	}

	if config.nonceSecrets == "" {
		golog.Fatalf("nonce.secrets is required")
	}
	var keys [][]byte
	for _, s := range strings.Split(config.nonceSecrets, ",") {
		keys = append(keys, []byte(strings.TrimSpace(s)))
	}
	signer, err := sig.NewSigner(keys, nil)
	if err != nil {
		golog.Fatalf("Failed to create nonce signer: %s", err)
	}
	nonces := guard.NewNonces(signer, nil)

	// The memcached backed stores keep rate counts and consumed nonces
	// shared across instances. Without memcached both fall back to process
	// local state, which is only correct for a single instance.
	var rl ratelimit.KeyedRateLimiter
	var usedNonces guard.UsedNonceStore
	if memcacheCli != nil {
		rl = ratelimit.NewMemcache(memcacheCli, config.rateLimitMax, config.rateLimitWindow)
		usedNonces = guard.NewMemcacheNonceStore(memcacheCli)
	} else {
		golog.Warningf("No memcached hosts configured, using in-process rate limiting and nonce blacklist")
		rl = ratelimit.NewMemory(nil, config.rateLimitMax, config.rateLimitWindow)
		usedNonces = guard.NewMemoryNonceStore(nil)
	}

	g := guard.New(&guard.Config{
		RateLimiter:  rl,
		Nonces:       nonces,
		UsedNonces:   usedNonces,
		UsedNonceTTL: config.usedNonceTTL,
		AdminOrigin:  strings.TrimRight(config.adminOrigin, "/"),
		PrivilegedActions: map[string]bool{
			handlers.ActionConnectionTest: true,
		},
		TrustProxyHeaders: config.behindProxy,
	})

	processor := payment.NewProcessor(gw, accounts, payment.NewNormalizer(nil, config.avsMessage))
	vaultMgr := vault.New(gw, dal.New(db))

	mux := http.NewServeMux()
	mux.Handle("/checkout", httputil.FromContextHandler(handlers.NewCheckout(g, gw, processor, vaultMgr, metricsRegistry.Scope("handlers"))))
	mux.Handle("/cards", httputil.FromContextHandler(handlers.NewCards(g, vaultMgr)))
	mux.Handle("/nonce", httputil.FromContextHandler(handlers.NewNonce(nonces)))
	mux.Handle("/admin/connection-test", httputil.FromContextHandler(handlers.NewConnectionTest(g, gw)))

	h := httputil.ToContextHandler(mux)
	h = httputil.LoggingHandler(h, config.behindProxy, httputil.LogRequestEvent)
	h = httputil.MetricsHandler(h, metricsRegistry.Scope("payflow"))
	h = httputil.RequestIDHandler(h)

	if config.corsOrigins != "" {
		origins := strings.Split(config.corsOrigins, ",")
		for i, o := range origins {
			origins[i] = strings.TrimSpace(o)
		}
		h = httputil.ToContextHandler(cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{httputil.Delete, httputil.Get, httputil.Options, httputil.Post, httputil.Put},
			AllowCredentials: true,
			AllowedHeaders:   []string{"*"},
		}).Handler(httputil.FromContextHandler(h)))
	}
	return h
}

// parseCurrencyAccounts parses "USD:acct_1,GBP:acct_2" into a routing map.
func parseCurrencyAccounts(s string) (map[string]string, error) {
	accounts := make(map[string]string)
	if s == "" {
		return accounts, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ix := strings.IndexByte(pair, ':')
		if ix <= 0 || ix == len(pair)-1 {
			return nil, fmt.Errorf("malformed currency:account pair %q", pair)
		}
		currency := strings.ToUpper(strings.TrimSpace(pair[:ix]))
		account := strings.TrimSpace(pair[ix+1:])
		if _, ok := accounts[currency]; ok {
			return nil, fmt.Errorf("duplicate account for currency %s", currency)
		}
		accounts[currency] = account
	}
	return accounts, nil
}

func serve(handler httputil.ContextHandler) {
	listener, err := net.Listen("tcp", config.httpAddr)
	if err != nil {
		golog.Fatalf(err.Error())
	}
	s := &http.Server{
		Handler:        httputil.FromContextHandler(handler),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	golog.Infof("Starting listener on %s...", config.httpAddr)
	golog.Fatalf(s.Serve(listener).Error())
}
