package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/HannahMarsh/onion-router/internal/api/structs"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

const createNodesTable = `CREATE TABLE IF NOT EXISTS nodes (
	node_id INTEGER PRIMARY KEY,
	pub_key TEXT NOT NULL
)`

// PostgresNodeRepository persists the directory so that it survives registry restarts.
type PostgresNodeRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresNodeRepository connects to databaseURL and creates the nodes table if needed.
func NewPostgresNodeRepository(ctx context.Context, databaseURL string) (*PostgresNodeRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "repositories.NewPostgresNodeRepository(): failed to open database")
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "repositories.NewPostgresNodeRepository(): failed to reach database")
	}
	if _, err = db.ExecContext(ctx, createNodesTable); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "repositories.NewPostgresNodeRepository(): failed to create nodes table")
	}
	return &PostgresNodeRepository{db: db, timeout: 5 * time.Second}, nil
}

func (repo *PostgresNodeRepository) RegisterNode(node structs.Node) error {
	ctx, cancel := context.WithTimeout(context.Background(), repo.timeout)
	defer cancel()
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO nodes (node_id, pub_key) VALUES ($1, $2) ON CONFLICT (node_id) DO NOTHING`,
		node.NodeID, node.PubKey)
	if err != nil {
		return errors.Wrapf(err, "failed to insert node %d", node.NodeID)
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	} else if n == 0 {
		return errors.Wrapf(ErrNodeExists, "node %d", node.NodeID)
	}
	return nil
}

func (repo *PostgresNodeRepository) GetNodes() ([]structs.Node, error) {
	ctx, cancel := context.WithTimeout(context.Background(), repo.timeout)
	defer cancel()
	rows, err := repo.db.QueryContext(ctx, `SELECT node_id, pub_key FROM nodes ORDER BY node_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query nodes")
	}
	defer rows.Close()

	nodes := make([]structs.Node, 0)
	for rows.Next() {
		var node structs.Node
		if err = rows.Scan(&node.NodeID, &node.PubKey); err != nil {
			return nil, errors.Wrap(err, "failed to scan node")
		}
		nodes = append(nodes, node)
	}
	return nodes, errors.Wrap(rows.Err(), "failed to iterate nodes")
}

func (repo *PostgresNodeRepository) Close() error {
	return repo.db.Close()
}
