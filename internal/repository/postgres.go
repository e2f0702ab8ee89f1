package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/steezkng/keyshop-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только конфликты сериализации и дедлоки, с переподключением
		// pgxpool справляется сам.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Цены хранятся в центах, конвертация выполняется на границе репозитория.
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(v int64) float64 {
	return float64(v) / 100
}

// ListCategories возвращает категории в порядке создания.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at FROM categories ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddCategory сохраняет новую категорию.
func (r *PostgresRepository) AddCategory(ctx context.Context, category model.Category) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)`,
		category.ID, category.Name, category.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrCategoryExists, category.Name)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// DeleteCategory удаляет категорию. Отсутствующая категория не является ошибкой.
func (r *PostgresRepository) DeleteCategory(ctx context.Context, categoryID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, categoryID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ListProducts возвращает товары вместе с секретами, новые первыми.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, price_cents, category, image_url, created_at
		 FROM products
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	index := make(map[string]int)
	for rows.Next() {
		var p model.Product
		var cents int64
		if err := rows.Scan(&p.ID, &p.Title, &cents, &p.Category, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Price = fromCents(cents)
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	credRows, err := r.pool.Query(ctx,
		`SELECT product_id, id, secret, used, claimed_by, claimed_at
		 FROM credentials
		 ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("select credentials: %w", err)
	}
	defer credRows.Close()

	for credRows.Next() {
		var productID string
		var c model.Credential
		if err := credRows.Scan(&productID, &c.ID, &c.Secret, &c.Used, &c.ClaimedBy, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].Credentials = append(products[i].Credentials, c)
		}
	}
	if err := credRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, title, price_cents, category, image_url, created_at
		 FROM products
		 WHERE id = $1`,
		productID,
	)

	var p model.Product
	var cents int64
	err := row.Scan(&p.ID, &p.Title, &cents, &p.Category, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	p.Price = fromCents(cents)

	rows, err := r.pool.Query(ctx,
		`SELECT id, secret, used, claimed_by, claimed_at
		 FROM credentials
		 WHERE product_id = $1
		 ORDER BY seq`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Credential
		if err := rows.Scan(&c.ID, &c.Secret, &c.Used, &c.ClaimedBy, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		p.Credentials = append(p.Credentials, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &p, nil
}

// AddProduct сохраняет новый товар вместе с начальными секретами.
func (r *PostgresRepository) AddProduct(ctx context.Context, product model.Product) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO products (id, title, price_cents, category, image_url, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			product.ID, product.Title, toCents(product.Price), product.Category, product.ImageURL, product.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		for _, c := range product.Credentials {
			if err := insertCredential(ctx, tx, product.ID, c); err != nil {
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// UpdateProduct применяет частичное обновление карточки товара.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, productID string, upd ProductUpdate) error {
	set := make([]string, 0, 4)
	args := make([]any, 0, 5)
	args = append(args, productID)

	if upd.Title != nil {
		args = append(args, *upd.Title)
		set = append(set, fmt.Sprintf("title = $%d", len(args)))
	}
	if upd.Price != nil {
		args = append(args, toCents(*upd.Price))
		set = append(set, fmt.Sprintf("price_cents = $%d", len(args)))
	}
	if upd.Category != nil {
		args = append(args, *upd.Category)
		set = append(set, fmt.Sprintf("category = $%d", len(args)))
	}
	if upd.ImageURL != nil {
		args = append(args, *upd.ImageURL)
		set = append(set, fmt.Sprintf("image_url = $%d", len(args)))
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $1`, strings.Join(set, ", "))
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// DeleteProduct удаляет товар, секреты удаляются каскадно.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, productID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func insertCredential(ctx context.Context, tx pgx.Tx, productID string, c model.Credential) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO credentials (id, product_id, secret, used, claimed_by, claimed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, productID, c.Secret, c.Used, c.ClaimedBy, c.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// AddCredentials добавляет секреты доставки к товару.
func (r *PostgresRepository) AddCredentials(ctx context.Context, productID string, credentials []model.Credential) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return ErrProductNotFound
	}

	for _, c := range credentials {
		if err := insertCredential(ctx, tx, productID, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RemoveCredential удаляет секрет товара. Отсутствующий секрет не является ошибкой.
func (r *PostgresRepository) RemoveCredential(ctx context.Context, productID, credentialID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM credentials WHERE id = $1 AND product_id = $2`,
		credentialID, productID,
	)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// ClaimCredentials помечает секреты занятыми указанным заказом. Условие
// used = FALSE делает повторный вызов безопасным: занятый секрет не
// перезаписывается.
func (r *PostgresRepository) ClaimCredentials(ctx context.Context, productID string, credentialIDs []string, orderID string, at time.Time) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE credentials
			 SET used = TRUE, claimed_by = $3, claimed_at = $4
			 WHERE product_id = $1 AND id = ANY($2) AND used = FALSE`,
			productID, credentialIDs, orderID, at,
		)
		if err != nil {
			return fmt.Errorf("claim credentials: %w", err)
		}
		return nil
	})
}

// InsertOrder сохраняет новый заказ вместе с позициями.
func (r *PostgresRepository) InsertOrder(ctx context.Context, order model.Order) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, buyer_email, status, payment_method, created_at,
			                     transaction_id, buyer_ip, subtotal_cents, tax_cents, total_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			order.ID, order.BuyerEmail, string(order.Status), string(order.PaymentMethod),
			order.CreatedAt, order.TransactionID, order.BuyerIP,
			toCents(order.Subtotal), toCents(order.Tax), toCents(order.Total),
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range order.Items {
			_, err = tx.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, title, qty, unit_price_cents, credential_ids)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				order.ID, item.ProductID, item.Title, item.Qty, toCents(item.UnitPrice), item.CredentialIDs,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, buyer_email, status, payment_method, created_at,
		        transaction_id, buyer_ip, subtotal_cents, tax_cents, total_cents
		 FROM orders
		 WHERE id = $1`,
		orderID,
	)

	var o model.Order
	var status, method string
	var subtotal, tax, total int64
	err := row.Scan(&o.ID, &o.BuyerEmail, &status, &method, &o.CreatedAt,
		&o.TransactionID, &o.BuyerIP, &subtotal, &tax, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	o.PaymentMethod = model.PaymentMethod(method)
	o.Subtotal = fromCents(subtotal)
	o.Tax = fromCents(tax)
	o.Total = fromCents(total)

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, title, qty, unit_price_cents, credential_ids
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY seq`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		var cents int64
		if err := rows.Scan(&item.ProductID, &item.Title, &item.Qty, &cents, &item.CredentialIDs); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.UnitPrice = fromCents(cents)
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &o, nil
}

// MarkOrderPaid переводит заказ в статус paid и записывает данные платежа.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, orderID, transactionID, buyerEmail, buyerIP string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $2, transaction_id = $3, buyer_email = $4, buyer_ip = $5
		 WHERE id = $1`,
		orderID, string(model.OrderStatusPaid), transactionID, buyerEmail, buyerIP,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// InsertSale добавляет запись в журнал продаж.
func (r *PostgresRepository) InsertSale(ctx context.Context, sale model.Sale) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sales (id, order_id, buyer_email, sold_at, transaction_id, buyer_ip, payment_method, total_cents)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sale.ID, sale.OrderID, sale.BuyerEmail, sale.Timestamp,
		sale.TransactionID, sale.BuyerIP, string(sale.PaymentMethod), toCents(sale.Total),
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// ListSales возвращает журнал продаж, новые записи первыми.
func (r *PostgresRepository) ListSales(ctx context.Context) ([]model.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, buyer_email, sold_at, transaction_id, buyer_ip, payment_method, total_cents
		 FROM sales
		 ORDER BY sold_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var res []model.Sale
	for rows.Next() {
		var s model.Sale
		var method string
		var totalCents int64
		if err := rows.Scan(&s.ID, &s.OrderID, &s.BuyerEmail, &s.Timestamp,
			&s.TransactionID, &s.BuyerIP, &method, &totalCents); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		s.PaymentMethod = model.PaymentMethod(method)
		s.Total = fromCents(totalCents)
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
