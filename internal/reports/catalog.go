package reports

import "dbdash/internal/dbmeta"

// shared is for report SQL that is portable across every supported
// database.
func shared(text string) map[dbmeta.DatabaseType]string {
	return map[dbmeta.DatabaseType]string{
		dbmeta.SQLite:     text,
		dbmeta.PostgreSQL: text,
		dbmeta.MySQL:      text,
	}
}

var catalog = []*Report{
	{
		ID:    1,
		Slug:  "multi-service-debtors",
		Title: "Clients in debt on more than one service",
		// Payments offset charges within their own billing period, so an
		// overpayment in one month never hides debt in another.
		sql: shared(`
SELECT c.account_no, c.full_name, c.address,
       COUNT(DISTINCT d.service_code) AS services_in_debt,
       ROUND(SUM(d.debt), 2) AS total_debt
FROM clients c
JOIN (
    SELECT cn.account_no, cn.service_code,
           cn.amount_due - COALESCE(p.amount, 0) AS debt
    FROM consumption cn
    LEFT JOIN payments p
           ON p.account_no = cn.account_no
          AND p.service_code = cn.service_code
          AND p.period = cn.period
    WHERE cn.amount_due - COALESCE(p.amount, 0) > 0
) d ON d.account_no = c.account_no
GROUP BY c.account_no, c.full_name, c.address
HAVING COUNT(DISTINCT d.service_code) > 1
ORDER BY total_debt DESC`),
	},
	{
		ID:    2,
		Slug:  "current-tariffs",
		Title: "Tariffs in effect with average consumption",
		sql: shared(`
SELECT s.name AS service, s.unit, t.zone, t.unit_price,
       t.valid_from, t.valid_to,
       ROUND(AVG(cn.volume), 2) AS avg_volume,
       COUNT(DISTINCT cn.account_no) AS consumers
FROM tariffs t
JOIN services s ON s.service_code = t.service_code
LEFT JOIN consumption cn ON cn.service_code = s.service_code
WHERE t.valid_from <= CURRENT_DATE
  AND (t.valid_to IS NULL OR t.valid_to >= CURRENT_DATE)
GROUP BY s.name, s.unit, t.zone, t.unit_price, t.valid_from, t.valid_to
ORDER BY s.name, t.zone`),
	},
	{
		ID:    3,
		Slug:  "above-average-consumers",
		Title: "Above-average consumers in the latest period",
		sql: shared(`
SELECT c.full_name, c.address, s.name AS service, cn.period, cn.volume,
       ROUND(a.avg_volume, 2) AS avg_volume,
       ROUND((cn.volume - a.avg_volume) / a.avg_volume * 100, 2) AS percent_over
FROM consumption cn
JOIN clients c ON c.account_no = cn.account_no
JOIN services s ON s.service_code = cn.service_code
JOIN (
    SELECT service_code, AVG(volume) AS avg_volume
    FROM consumption
    WHERE period = (SELECT MAX(period) FROM consumption)
    GROUP BY service_code
) a ON a.service_code = cn.service_code
WHERE cn.period = (SELECT MAX(period) FROM consumption)
  AND cn.volume > a.avg_volume
ORDER BY s.name, percent_over DESC`),
	},
	{
		ID:    4,
		Slug:  "payment-sheet",
		Title: "Payment sheet for the latest period by address",
		sql: shared(`
SELECT c.account_no, c.full_name, c.address, s.name AS service,
       ROUND(SUM(p.amount), 2) AS total_paid
FROM payments p
JOIN clients c ON c.account_no = p.account_no
JOIN services s ON s.service_code = p.service_code
WHERE c.address LIKE ?
  AND p.period = (SELECT MAX(period) FROM payments)
GROUP BY c.account_no, c.full_name, c.address, s.name
ORDER BY c.full_name, s.name`),
		args: func(opts Options) []any {
			pattern := opts.AddressPattern
			if pattern == "" {
				pattern = "%"
			}
			return []any{pattern}
		},
	},
	{
		ID:    5,
		Slug:  "monthly-debt",
		Title: "Monthly debt by service, current year",
		sql: map[dbmeta.DatabaseType]string{
			dbmeta.SQLite: `
SELECT d.month, s.name AS service,
       ROUND(d.billed, 2) AS billed,
       ROUND(d.paid, 2) AS paid,
       ROUND(d.billed - d.paid, 2) AS debt,
       d.debtors,
       ROUND((d.billed - d.paid) / NULLIF(d.billed, 0) * 100, 2) AS debt_percent
FROM (
    SELECT strftime('%Y-%m', cn.period) AS month, cn.service_code,
           SUM(cn.amount_due) AS billed,
           SUM(COALESCE(p.amount, 0)) AS paid,
           COUNT(DISTINCT CASE WHEN cn.amount_due - COALESCE(p.amount, 0) > 0
                               THEN cn.account_no END) AS debtors
    FROM consumption cn
    LEFT JOIN payments p
           ON p.account_no = cn.account_no
          AND p.service_code = cn.service_code
          AND p.period = cn.period
    WHERE strftime('%Y', cn.period) = strftime('%Y', 'now')
    GROUP BY month, cn.service_code
) d
JOIN services s ON s.service_code = d.service_code
ORDER BY d.month, s.name`,
			dbmeta.PostgreSQL: `
SELECT d.month, s.name AS service,
       ROUND(d.billed, 2) AS billed,
       ROUND(d.paid, 2) AS paid,
       ROUND(d.billed - d.paid, 2) AS debt,
       d.debtors,
       ROUND((d.billed - d.paid) / NULLIF(d.billed, 0) * 100, 2) AS debt_percent
FROM (
    SELECT TO_CHAR(cn.period, 'YYYY-MM') AS month, cn.service_code,
           SUM(cn.amount_due) AS billed,
           SUM(COALESCE(p.amount, 0)) AS paid,
           COUNT(DISTINCT CASE WHEN cn.amount_due - COALESCE(p.amount, 0) > 0
                               THEN cn.account_no END) AS debtors
    FROM consumption cn
    LEFT JOIN payments p
           ON p.account_no = cn.account_no
          AND p.service_code = cn.service_code
          AND p.period = cn.period
    WHERE EXTRACT(YEAR FROM cn.period) = EXTRACT(YEAR FROM CURRENT_DATE)
    GROUP BY month, cn.service_code
) d
JOIN services s ON s.service_code = d.service_code
ORDER BY d.month, s.name`,
			dbmeta.MySQL: `
SELECT d.month, s.name AS service,
       ROUND(d.billed, 2) AS billed,
       ROUND(d.paid, 2) AS paid,
       ROUND(d.billed - d.paid, 2) AS debt,
       d.debtors,
       ROUND((d.billed - d.paid) / NULLIF(d.billed, 0) * 100, 2) AS debt_percent
FROM (
    SELECT DATE_FORMAT(cn.period, '%Y-%m') AS month, cn.service_code,
           SUM(cn.amount_due) AS billed,
           SUM(COALESCE(p.amount, 0)) AS paid,
           COUNT(DISTINCT CASE WHEN cn.amount_due - COALESCE(p.amount, 0) > 0
                               THEN cn.account_no END) AS debtors
    FROM consumption cn
    LEFT JOIN payments p
           ON p.account_no = cn.account_no
          AND p.service_code = cn.service_code
          AND p.period = cn.period
    WHERE YEAR(cn.period) = YEAR(CURDATE())
    GROUP BY month, cn.service_code
) d
JOIN services s ON s.service_code = d.service_code
ORDER BY d.month, s.name`,
		},
	},
}
