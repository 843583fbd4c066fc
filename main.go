package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"EstudaquiPay/internal/db"
	"EstudaquiPay/internal/handler"
	"EstudaquiPay/internal/poller"
	"EstudaquiPay/internal/services"
)

type Config struct {
	MySQL struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		DBName   string `mapstructure:"dbname"`
	} `mapstructure:"mysql"`
	Solana struct {
		RPCURL     string `mapstructure:"rpc_url"`
		Receiver   string `mapstructure:"receiver"`
		USDCMint   string `mapstructure:"usdc_mint"`
		RPCTimeout int    `mapstructure:"rpc_timeout"` // seconds, per RPC call
	} `mapstructure:"solana"`
	App struct {
		Port         int `mapstructure:"port"`
		PollInterval int `mapstructure:"poll_interval"` // seconds between poll cycles
		PollLimit    int `mapstructure:"poll_limit"`    // signatures examined per cycle
		OrderTimeout int `mapstructure:"order_timeout"` // seconds until a QR order expires
		PackCacheTTL int `mapstructure:"pack_cache_ttl"`
	} `mapstructure:"app"`
}

func main() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal("failed to read config:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatal("failed to parse config:", err)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.MySQL.User, cfg.MySQL.Password, cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.DBName)
	// TranslateError is required: the ledger relies on gorm.ErrDuplicatedKey
	// to detect an already-credited signature.
	dbConn, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to MySQL:", err)
	}
	if err := dbConn.AutoMigrate(&db.Pack{}, &db.User{}, &db.PaymentRecord{}); err != nil {
		log.Fatal("schema migration failed:", err)
	}

	solanaSvc, err := services.NewSolanaService(services.SolanaConfig{
		RPCURL:     cfg.Solana.RPCURL,
		Receiver:   cfg.Solana.Receiver,
		USDCMint:   cfg.Solana.USDCMint,
		RPCTimeout: time.Duration(cfg.Solana.RPCTimeout) * time.Second,
	})
	if err != nil {
		log.Fatal("failed to init solana service:", err)
	}
	log.Printf("receiver token account: %s", solanaSvc.ReceiverATA.String())

	packs := services.NewPackService(db.NewPackStore(dbConn), time.Duration(cfg.App.PackCacheTTL)*time.Second)
	ledger := db.NewLedger(dbConn)
	verifier := services.NewVerifier(solanaSvc.Chain(), packs, ledger, solanaSvc.ReceiverATA)
	p := poller.New(solanaSvc.Chain(), verifier, packs, solanaSvc.ReceiverATA,
		time.Duration(cfg.App.PollInterval)*time.Second, cfg.App.PollLimit)
	orders := poller.NewManager(p, packs, time.Duration(cfg.App.OrderTimeout)*time.Second)

	r := gin.Default()
	handler.RegisterRoutes(r, handler.New(dbConn, packs, verifier, solanaSvc, orders))

	port := fmt.Sprintf(":%d", cfg.App.Port)
	log.Printf("server listening on %s", port)
	if err := r.Run(port); err != nil {
		log.Fatal("gin server failed:", err)
	}
}
