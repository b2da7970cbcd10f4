package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iurnickita/abetos/internal/model"
)

func (store *sqlStore) AuthRegister(ctx context.Context, user model.User) (model.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = store.now()
	}

	// Запись нового пользователя
	row := store.q.QueryRowContext(ctx,
		"INSERT INTO users (email, password_hash, role, created_at)"+
			" VALUES ($1, $2, $3, $4)"+
			" RETURNING id",
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt)
	if err := row.Scan(&user.ID); err != nil {
		return model.User{}, translateError(err)
	}
	return user, nil
}

func (store *sqlStore) AuthGetByEmail(ctx context.Context, email string) (model.User, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, created_at FROM users"+
			" WHERE email = $1",
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (store *sqlStore) AuthGetByID(ctx context.Context, id int64) (model.User, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, created_at FROM users"+
			" WHERE id = $1",
		id)
	return scanUser(row)
}

func scanUser(row rowScanner) (model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return model.User{}, translateError(err)
	}
	return user, nil
}

// CustomerCreate создает клиента и сразу присваивает номер участника,
// если он не передан.
func (store *sqlStore) CustomerCreate(ctx context.Context, customer model.Customer) (model.Customer, error) {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = store.now()
	}

	err := store.withTx(ctx, func(s *sqlStore) error {
		row := s.q.QueryRowContext(ctx,
			"INSERT INTO customers (user_id, full_name, doc_number, phone, member_number, created_at)"+
				" VALUES ($1, $2, $3, $4, $5, $6)"+
				" RETURNING id",
			nullInt64(customer.UserID),
			customer.FullName,
			customer.DocNumber,
			nullString(customer.Phone),
			nullString(customer.MemberNumber),
			customer.CreatedAt)
		if err := row.Scan(&customer.ID); err != nil {
			return translateError(err)
		}
		if customer.MemberNumber != "" {
			return nil
		}

		customer.MemberNumber = model.MemberNumber(customer.ID)
		_, err := s.q.ExecContext(ctx,
			"UPDATE customers SET member_number = $1 WHERE id = $2",
			customer.MemberNumber,
			customer.ID)
		return translateError(err)
	})
	if err != nil {
		return model.Customer{}, err
	}
	return customer, nil
}

const customerColumns = "id, user_id, full_name, doc_number, phone, member_number, created_at"

func (store *sqlStore) CustomerGet(ctx context.Context, id int64) (model.Customer, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1",
		id)
	return scanCustomer(row)
}

// CustomerGetForUpdate блокирует строку клиента до конца транзакции.
// Так списания одного клиента выполняются строго по очереди.
func (store *sqlStore) CustomerGetForUpdate(ctx context.Context, id int64) (model.Customer, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1"+store.dialect.forUpdate,
		id)
	return scanCustomer(row)
}

func (store *sqlStore) CustomerGetByDoc(ctx context.Context, docNumber string) (model.Customer, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE doc_number = $1",
		strings.TrimSpace(docNumber))
	return scanCustomer(row)
}

func (store *sqlStore) CustomerGetByUser(ctx context.Context, userID int64) (model.Customer, error) {
	row := store.q.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE user_id = $1",
		userID)
	return scanCustomer(row)
}

// CustomerRepairMemberNumbers присваивает номера участника клиентам, у которых его нет.
// Повторный вызов ничего не меняет.
func (store *sqlStore) CustomerRepairMemberNumbers(ctx context.Context) (int, error) {
	var repaired int
	err := store.withTx(ctx, func(s *sqlStore) error {
		rows, err := s.q.QueryContext(ctx,
			"SELECT id FROM customers"+
				" WHERE member_number IS NULL OR member_number = ''"+
				" ORDER BY id")
		if err != nil {
			return err
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err = rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err = rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			_, err = s.q.ExecContext(ctx,
				"UPDATE customers SET member_number = $1 WHERE id = $2",
				model.MemberNumber(id),
				id)
			if err != nil {
				return translateError(err)
			}
			repaired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return repaired, nil
}

func scanCustomer(row rowScanner) (model.Customer, error) {
	var (
		customer     model.Customer
		userID       sql.NullInt64
		phone        sql.NullString
		memberNumber sql.NullString
	)
	err := row.Scan(&customer.ID,
		&userID,
		&customer.FullName,
		&customer.DocNumber,
		&phone,
		&memberNumber,
		&customer.CreatedAt)
	if err != nil {
		return model.Customer{}, translateError(err)
	}
	customer.UserID = int64Ptr(userID)
	customer.Phone = phone.String
	customer.MemberNumber = memberNumber.String
	return customer, nil
}
