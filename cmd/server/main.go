package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/Luismorlan/hexfeed/app_config"
	"github.com/Luismorlan/hexfeed/events"
	"github.com/Luismorlan/hexfeed/events/modules"
	"github.com/Luismorlan/hexfeed/feedsync"
	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/notify"
	"github.com/Luismorlan/hexfeed/server"
	"github.com/Luismorlan/hexfeed/server/middlewares"
	"github.com/Luismorlan/hexfeed/utils"
	"github.com/Luismorlan/hexfeed/utils/dotenv"
	. "github.com/Luismorlan/hexfeed/utils/flag"
	. "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

const (
	sessionSweepInterval = 10 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

var (
	// Configuration to customize binary startup.
	AppConfig app_config.AppConfig
)

func init() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

func cleanup() {
	utils.CloseProfiler()
	utils.CloseTracer()
	Log.Info("api server shutdown")
}

// backends groups everything built from the app config.
type backends struct {
	deps      server.Deps
	messenger notify.Messenger
	verifier  middlewares.TokenVerifier
	closers   []func() error
}

func firebaseApp(ctx context.Context) *firebase.App {
	app, err := gateway.NewFirebaseApp(ctx, gateway.FirebaseConfig{
		CredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		ProjectId:       os.Getenv("FIREBASE_PROJECT_ID"),
		StorageBucket:   os.Getenv("FIREBASE_STORAGE_BUCKET"),
		ApiKey:          os.Getenv("FIREBASE_API_KEY"),
	})
	if err != nil {
		Log.Fatalf("fail to initialize firebase: %v", err)
	}
	return app
}

func buildBackends(ctx context.Context) *backends {
	b := &backends{}
	var app *firebase.App
	if AppConfig.UsesFirebase() {
		app = firebaseApp(ctx)
	}

	switch AppConfig.CREDENTIAL_PROVIDER {
	case app_config.ProviderFirebase:
		creds, err := gateway.NewFirebaseCredentialGateway(ctx, app, os.Getenv("FIREBASE_API_KEY"))
		if err != nil {
			Log.Fatalf("fail to setup firebase auth: %v", err)
		}
		b.deps.Credentials = creds
	case app_config.ProviderCognito:
		creds, err := gateway.NewCognitoCredentialGateway(ctx, os.Getenv("COGNITO_USER_POOL_ID"), os.Getenv("COGNITO_CLIENT_ID"))
		if err != nil {
			// Abort directly if the Cognito isn't setup successfully, which is
			// crucial for server side authorization.
			Log.Fatalf("fail to setup Cognito client: %v", err)
		}
		b.deps.Credentials = creds
		b.verifier = creds
	default:
		b.deps.Credentials = gateway.NewFakeCredentialGateway()
	}

	switch AppConfig.DOCUMENT_PROVIDER {
	case app_config.ProviderFirestore:
		store, err := gateway.NewFirestoreDocumentStore(ctx, app)
		if err != nil {
			Log.Fatalf("fail to setup firestore: %v", err)
		}
		b.deps.Store = store
		b.closers = append(b.closers, store.Close)
	case app_config.ProviderSQL:
		db, err := utils.GetDBConnection()
		if err != nil {
			Log.Fatalf("fail to connect to database: %v", err)
		}
		utils.DatabaseSetupAndMigration(db)
		var store *gateway.SQLDocumentStore
		if utils.IsRedisConfigured() {
			rdb, err := utils.GetRedisClient(ctx)
			if err != nil {
				Log.Fatalf("fail to connect to redis: %v", err)
			}
			store = gateway.NewSQLDocumentStore(db, rdb)
		} else {
			Log.Warnln("redis not configured, sql listeners fall back to polling")
			store = gateway.NewSQLDocumentStore(db, nil)
		}
		store.SetPollInterval(AppConfig.SQLPollInterval())
		b.deps.Store = store
		b.closers = append(b.closers, store.Close)
	default:
		b.deps.Store = gateway.NewFakeDocumentStore()
	}

	switch AppConfig.BLOB_PROVIDER {
	case app_config.ProviderFirebase:
		blobs, err := gateway.NewFirebaseBlobStore(ctx, app, os.Getenv("FIREBASE_STORAGE_BUCKET"))
		if err != nil {
			Log.Fatalf("fail to setup firebase storage: %v", err)
		}
		b.deps.Blobs = blobs
	case app_config.ProviderS3:
		region := AppConfig.S3_REGION
		if region == "" {
			region = gateway.DefaultS3Region
		}
		blobs, err := gateway.NewS3BlobStore(region, AppConfig.S3_BUCKET, AppConfig.S3_URL_PREFIX)
		if err != nil {
			Log.Fatalf("fail to setup s3: %v", err)
		}
		b.deps.Blobs = blobs
	default:
		b.deps.Blobs = gateway.NewFakeBlobStore()
	}

	switch AppConfig.MESSENGER_PROVIDER {
	case app_config.ProviderFCM:
		messenger, err := notify.NewFCMMessenger(ctx, app)
		if err != nil {
			Log.Fatalf("fail to setup fcm: %v", err)
		}
		b.messenger = messenger
	default:
		b.messenger = notify.NewFakeMessenger()
	}

	switch AppConfig.SETTINGS_PROVIDER {
	case app_config.ProviderRedis:
		rdb, err := utils.GetRedisClient(ctx)
		if err != nil {
			Log.Fatalf("fail to connect to redis: %v", err)
		}
		b.deps.Settings = notify.NewRedisSettingsStore(rdb)
		b.closers = append(b.closers, rdb.Close)
	default:
		b.deps.Settings = notify.NewMemorySettingsStore()
	}

	return b
}

func main() {
	flag.Parse()
	InitLogger()
	defer cleanup()

	var err error
	if AppConfig, err = app_config.ParseAppConfig(AppConfigPath); err != nil {
		Log.Fatalf("invalid app config %s: %v", AppConfigPath, err)
	}

	utils.StartTracer()
	utils.StartProfiler()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := buildBackends(ctx)
	defer func() {
		for _, closeFn := range b.closers {
			if err := closeFn(); err != nil {
				Log.Errorf("fail to close backend: %v", err)
			}
		}
	}()

	eventbus := events.NewEventBus(AppConfig.EVENT_BUS_BUFFER)
	b.deps.Events = events.NewPublisher(eventbus)
	statsd := utils.NewDogStatsdClient()

	// Initialize all engine modules here.
	engineModules := []events.Module{
		// Reporter reports the event counts to datadog for monitoring purpose.
		modules.NewReporter(modules.ReporterConfig{Name: "reporter"}, statsd, eventbus),
		// Notifier pushes a notification to post authors on new comments.
		modules.NewNotifier(
			modules.NotifierConfig{Name: "notifier"},
			feedsync.NewReader(b.deps.Store),
			b.deps.Settings,
			b.messenger,
			statsd,
			eventbus,
		),
	}
	if AppConfig.EVENT_FORWARD_QUEUE != "" {
		queue, err := utils.NewSQSMessageQueueWriter(AppConfig.EVENT_FORWARD_QUEUE)
		if err != nil {
			Log.Fatalf("fail to setup event forwarding: %v", err)
		}
		engineModules = append(engineModules, modules.NewForwarder(modules.ForwarderConfig{Name: "forwarder"}, queue, eventbus))
	}
	engine := events.NewEngine(engineModules, ctx, eventbus)
	go engine.Run()
	defer engine.Shutdown()

	api := server.NewServer(b.deps)
	go api.Sessions.RunSweeper(ctx, sessionSweepInterval, AppConfig.SessionIdleTTL())

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(gintrace.Middleware(ServiceName))
	if AppConfig.REQUIRE_ACCESS_TOKEN {
		router.Use(middlewares.JWT(b.verifier, "/ping"))
	}
	api.RegisterRoutes(router)

	srv := &http.Server{Addr: AppConfig.SERVER_ADDRESS, Handler: router}
	go func() {
		Log.Infof("api server starts up on %s", AppConfig.SERVER_ADDRESS)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Log.Errorf("api server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Log.Errorf("fail to shutdown api server: %v", err)
	}
}
