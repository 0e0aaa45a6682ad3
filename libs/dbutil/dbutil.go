// Package dbutil provides database connection and query building helpers.
package dbutil

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/sprucehealth/payflow/libs/errors"
)

// DBConfig represents the data needed to connect to a database
type DBConfig struct {
	Host               string
	Port               int64
	Name               string
	User               string
	Password           string
	CACert             string
	TLSCert            string
	TLSKey             string
	MaxOpenConnections int
	MaxIdleConnections int
}

// ConnectMySQL uses the provided information to initialize a mysql connection
func ConnectMySQL(dbconfig *DBConfig) (*sql.DB, error) {
	if dbconfig.User == "" || dbconfig.Host == "" || dbconfig.Name == "" {
		return nil, errors.New("dbutil: missing one or more of user, host, or name for db config")
	}

	opts := "?parseTime=true"
	if dbconfig.CACert != "" && dbconfig.TLSCert != "" && dbconfig.TLSKey != "" {
		rootCertPool := x509.NewCertPool()
		if ok := rootCertPool.AppendCertsFromPEM([]byte(dbconfig.CACert)); !ok {
			return nil, errors.New("dbutil: failed to append CA cert PEM")
		}
		cert, err := tls.X509KeyPair([]byte(dbconfig.TLSCert), []byte(dbconfig.TLSKey))
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err := mysql.RegisterTLSConfig("custom", &tls.Config{
			RootCAs:      rootCertPool,
			Certificates: []tls.Certificate{cert},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		opts += "&tls=custom"
	}

	if dbconfig.Port == 0 {
		dbconfig.Port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s%s&charset=utf8mb4&collation=utf8mb4_unicode_ci&loc=Local&interpolateParams=true",
		dbconfig.User, dbconfig.Password, dbconfig.Host, dbconfig.Port, dbconfig.Name, opts)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// test the connection to the database by running a ping against it
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Trace(err)
	}
	if dbconfig.MaxOpenConnections != 0 {
		db.SetMaxOpenConns(dbconfig.MaxOpenConnections)
	}
	if dbconfig.MaxIdleConnections != 0 {
		db.SetMaxIdleConns(dbconfig.MaxIdleConnections)
	}
	return db, nil
}

// MySQLArgs returns n mysql placeholder arguments for a database query.
func MySQLArgs(n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]byte, 2*n-1)
	for i := 0; i < len(result)-1; i += 2 {
		result[i] = '?'
		result[i+1] = ','
	}
	result[len(result)-1] = '?'
	return string(result)
}
