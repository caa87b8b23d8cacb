package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/studyhall/studyhall-go/internal/crypto"
	"github.com/studyhall/studyhall-go/internal/model"
)

// NewDB creates a MySQL connection pool for the given DSN.
func NewDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		slog.Warn("database ping failed — continuing without DB", "error", err)
	}

	return db, nil
}

// MySQLStore persists one session row per client id. Token bundles are
// encrypted at rest; the schema is:
//
//	CREATE TABLE sessions (
//	    client_id  VARCHAR(64) PRIMARY KEY,
//	    payload    BLOB NOT NULL,
//	    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
//	        ON UPDATE CURRENT_TIMESTAMP
//	);
type MySQLStore struct {
	db       *sql.DB
	cipher   *crypto.Cipher
	clientID string
}

// NewMySQLStore creates a MySQL-backed store keyed by clientID.
func NewMySQLStore(db *sql.DB, cipher *crypto.Cipher, clientID string) *MySQLStore {
	return &MySQLStore{db: db, cipher: cipher, clientID: clientID}
}

func (s *MySQLStore) Load(ctx context.Context) (*model.Session, error) {
	query := `SELECT payload FROM sessions WHERE client_id = ?`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, s.clientID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	plaintext, err := s.cipher.Decrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("decrypting session: %w", err)
	}

	var sess model.Session
	if err := json.Unmarshal(plaintext, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *MySQLStore) Save(ctx context.Context, sess *model.Session) error {
	plaintext, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	payload, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}

	query := `INSERT INTO sessions (client_id, payload) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload)`

	if _, err := s.db.ExecContext(ctx, query, s.clientID, payload); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *MySQLStore) Clear(ctx context.Context) error {
	query := `DELETE FROM sessions WHERE client_id = ?`

	if _, err := s.db.ExecContext(ctx, query, s.clientID); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
