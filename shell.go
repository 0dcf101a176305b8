package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"community-toolshare/library"
)

func runShell(a *app) error {
	scanner := bufio.NewScanner(os.Stdin)
	var sess library.Session
	if a.as > 0 {
		s, err := a.session()
		if err != nil {
			fmt.Printf("Login failed: %v\n", err)
		} else {
			sess = s
		}
	}

	fmt.Println("Welcome to the Community Tool Library!")
	printShellHelp()

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "":
		case "login":
			if s, ok := handleLogin(scanner, a.mgr); ok {
				sess = s
			}
		case "logout":
			sess = library.Session{}
			fmt.Println("Logged out.")
		case "whoami":
			handleWhoAmI(a.mgr, sess)
		case "add tool":
			handleAddTool(scanner, a.mgr, sess)
		case "list tools":
			handleListTools(a.mgr)
		case "search tools":
			handleSearchTools(scanner, a.mgr)
		case "update tool":
			handleUpdateTool(scanner, a.mgr, sess)
		case "retire tool":
			handleRetireTool(scanner, a.mgr, sess)
		case "add user":
			handleAddUser(scanner, a.mgr, sess)
		case "list users":
			handleListUsers(a.mgr)
		case "update user":
			handleUpdateUser(scanner, a.mgr, sess)
		case "deactivate user":
			handleDeactivateUser(scanner, a.mgr, sess)
		case "lend":
			handleLend(scanner, a.mgr, sess)
		case "return":
			handleReturn(scanner, a.mgr, sess)
		case "list loans":
			handleListLoans(scanner, a.mgr)
		case "my loans":
			handleMyLoans(a.mgr, sess)
		case "request":
			handleRequest(scanner, a.mgr, sess)
		case "list requests":
			handleListRequests(a.mgr)
		case "approve":
			handleApprove(scanner, a.mgr, sess)
		case "reject":
			handleReject(scanner, a.mgr, sess)
		case "summary":
			handleSummary(a.mgr)
		case "low stock":
			handleLowStock(a.mgr)
		case "overdue":
			handleOverdue(a.mgr)
		case "top tools":
			handleTopTools(a.mgr)
		case "active users":
			handleActiveUsers(a.mgr)
		case "holders":
			handleHolders(scanner, a.mgr)
		case "reconcile":
			handleReconcile(a.mgr)
		case "help":
			printShellHelp()
		case "exit":
			fmt.Println("Goodbye!")
			return nil
		default:
			fmt.Println("Unknown command. Type 'help' to see the available commands.")
		}
	}
	return scanner.Err()
}

func printShellHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  Session: login, logout, whoami")
	fmt.Println("  Tools: add tool, list tools, search tools, update tool, retire tool")
	fmt.Println("  Users: add user, list users, update user, deactivate user")
	fmt.Println("  Loans: lend, return, list loans, my loans")
	fmt.Println("  Requests: request, list requests, approve, reject")
	fmt.Println("  Reports: summary, low stock, overdue, top tools, active users, holders, reconcile")
	fmt.Println("  System: help, exit")
}

// ----- Prompt helpers -----

func ask(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func askID(sc *bufio.Scanner, label, what string) (int64, bool) {
	s, ok := ask(sc, label)
	if !ok {
		return 0, false
	}
	id, err := parseID(s, what)
	if err != nil {
		fmt.Println(err)
		return 0, false
	}
	return id, true
}

// askInt returns def for a blank answer.
func askInt(sc *bufio.Scanner, label string, def int) (int, bool) {
	s, ok := ask(sc, label)
	if !ok {
		return 0, false
	}
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Printf("Invalid number: %s\n", s)
		return 0, false
	}
	return n, true
}

func needLogin(sess library.Session) bool {
	if !sess.Valid() {
		fmt.Println("Please 'login' first.")
		return false
	}
	return true
}

// report prints err, separating rule violations from storage problems.
func report(action string, err error) {
	switch {
	case errors.Is(err, library.ErrUnauthorized):
		fmt.Printf("Not allowed: %v\n", err)
		return
	case library.IsBusinessError(err):
		fmt.Printf("Could not %s: %v\n", action, err)
		return
	}
	fmt.Printf("Error while trying to %s: %v (see the log for details)\n", action, err)
}

// userLabel is the user's full name, or "user N" when it cannot be read.
func userLabel(mgr *library.Manager, id int64) string {
	u, err := mgr.Users.Get(id)
	if err != nil {
		return fmt.Sprintf("user %d", id)
	}
	return u.FullName()
}

func toolLabel(mgr *library.Manager, id int64) string {
	t, err := mgr.Tools.Get(id)
	if err != nil {
		return fmt.Sprintf("tool %d", id)
	}
	return t.Name
}

// ----- Session -----

func handleLogin(sc *bufio.Scanner, mgr *library.Manager) (library.Session, bool) {
	id, ok := askID(sc, "User ID: ", "user")
	if !ok {
		return library.Session{}, false
	}
	pw, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return library.Session{}, false
	}
	s, err := mgr.Login(id, pw)
	if err != nil {
		fmt.Printf("Authentication failed: %v\n", err)
		return library.Session{}, false
	}
	fmt.Printf("Logged in as %s (%s)\n", userLabel(mgr, id), s.Role)
	return s, true
}

func handleWhoAmI(mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	u, err := mgr.Users.Get(sess.UserID)
	if err != nil {
		report("look up user", err)
		return
	}
	fmt.Printf("%s (ID %d, %s), session %s since %s\n",
		u.FullName(), u.ID, u.Role, sess.ID, sess.StartedAt.Format("2006-01-02 15:04"))
}

// ----- Tools -----

func handleAddTool(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	name, ok := ask(sc, "Name: ")
	if !ok {
		return
	}
	category, ok := ask(sc, "Category: ")
	if !ok {
		return
	}
	quantity, ok := askInt(sc, "Total units [1]: ", 1)
	if !ok {
		return
	}
	status, ok := ask(sc, "Status (active, in_repair, out_of_service) [active]: ")
	if !ok {
		return
	}
	valueStr, ok := ask(sc, "Estimated value [0]: ")
	if !ok {
		return
	}
	var value float64
	if valueStr != "" {
		v, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			fmt.Printf("Invalid value: %s\n", valueStr)
			return
		}
		value = v
	}

	t, err := mgr.AddTool(sess, name, category, quantity, library.ToolStatus(status), value)
	if err != nil {
		report("add tool", err)
		return
	}
	fmt.Printf("Added tool ID %d: %s x%d\n", t.ID, t.Name, t.TotalQuantity)
}

func handleListTools(mgr *library.Manager) {
	tools, err := mgr.Tools.List(false)
	if err != nil {
		report("list tools", err)
		return
	}
	printTools(tools)
}

func handleSearchTools(sc *bufio.Scanner, mgr *library.Manager) {
	query, ok := ask(sc, "Name contains (or category:<name>): ")
	if !ok {
		return
	}
	var (
		tools []library.Tool
		err   error
	)
	if cat, found := strings.CutPrefix(query, "category:"); found {
		tools, err = mgr.Tools.SearchByCategory(cat)
	} else {
		tools, err = mgr.Tools.SearchByName(query)
	}
	if err != nil {
		report("search tools", err)
		return
	}
	fmt.Printf("Found %d tool(s) matching '%s':\n", len(tools), query)
	printTools(tools)
}

func handleUpdateTool(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	id, ok := askID(sc, "Tool ID: ", "tool")
	if !ok {
		return
	}
	line, ok := ask(sc, "Changes (name=...; category=...; status=...; estimated_value=...): ")
	if !ok {
		return
	}
	fields, err := parseAssignments([]string{line})
	if err != nil {
		fmt.Println(err)
		return
	}
	patch, err := library.ParseToolPatch(fields)
	if err != nil {
		report("update tool", err)
		return
	}
	t, err := mgr.UpdateTool(sess, id, patch)
	if err != nil {
		report("update tool", err)
		return
	}
	printTools([]library.Tool{*t})
}

func handleRetireTool(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	id, ok := askID(sc, "Tool ID: ", "tool")
	if !ok {
		return
	}
	if err := mgr.RetireTool(sess, id); err != nil {
		report("retire tool", err)
		return
	}
	fmt.Printf("Tool %d retired. Outstanding loans are unaffected.\n", id)
}

// ----- Users -----

func handleAddUser(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	var in library.UserInput
	var ok bool
	if in.Names, ok = ask(sc, "Names: "); !ok {
		return
	}
	if in.Surnames, ok = ask(sc, "Surnames: "); !ok {
		return
	}
	if in.Phone, ok = ask(sc, "Phone: "); !ok {
		return
	}
	if in.Address, ok = ask(sc, "Address: "); !ok {
		return
	}
	role, ok := ask(sc, "Role (resident, administrator) [resident]: ")
	if !ok {
		return
	}
	in.Role = library.Role(role)

	pw, err := readPassword(fmt.Sprintf("Enter password for %s: ", in.Names))
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	in.Password = pw

	u, err := mgr.AddUser(sess, in)
	if err != nil {
		report("add user", err)
		return
	}
	fmt.Printf("Added %s '%s' with ID %d\n", u.Role, u.FullName(), u.ID)
}

func handleListUsers(mgr *library.Manager) {
	users, err := mgr.Users.List(false)
	if err != nil {
		report("list users", err)
		return
	}
	printUsers(users)
}

func handleUpdateUser(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	id, ok := askID(sc, "User ID: ", "user")
	if !ok {
		return
	}
	line, ok := ask(sc, "Changes (names=...; surnames=...; phone=...; address=...; role=...): ")
	if !ok {
		return
	}
	fields, err := parseAssignments([]string{line})
	if err != nil {
		fmt.Println(err)
		return
	}
	reset, ok := ask(sc, "Reset password? (y/N): ")
	if !ok {
		return
	}
	if strings.EqualFold(reset, "y") {
		pw, err := readPassword(fmt.Sprintf("Enter new password for user %d: ", id))
		if err != nil {
			fmt.Printf("Error reading password: %v\n", err)
			return
		}
		fields["password"] = pw
	}
	patch, err := library.ParseUserPatch(fields)
	if err != nil {
		report("update user", err)
		return
	}
	u, err := mgr.UpdateUser(sess, id, patch)
	if err != nil {
		report("update user", err)
		return
	}
	printUsers([]library.User{*u})
}

func handleDeactivateUser(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	id, ok := askID(sc, "User ID: ", "user")
	if !ok {
		return
	}
	if err := mgr.DeactivateUser(sess, id); err != nil {
		report("deactivate user", err)
		return
	}
	fmt.Printf("User %d deactivated\n", id)
}

// ----- Circulation -----

func handleLend(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	userID, ok := askID(sc, "Borrower user ID: ", "user")
	if !ok {
		return
	}
	toolID, ok := askID(sc, "Tool ID: ", "tool")
	if !ok {
		return
	}
	quantity, ok := askInt(sc, "Units [1]: ", 1)
	if !ok {
		return
	}
	days, ok := askInt(sc, fmt.Sprintf("Days [%d]: ", mgr.DefaultLoanDays()), 0)
	if !ok {
		return
	}
	remarks, ok := ask(sc, "Remarks (optional): ")
	if !ok {
		return
	}

	l, err := mgr.CreateLoan(sess, userID, toolID, quantity, days, remarks)
	if err != nil {
		report("create loan", err)
		return
	}
	fmt.Printf("Loan %d: %d x '%s' lent to %s, due %s\n",
		l.ID, l.Quantity, toolLabel(mgr, l.ToolID), userLabel(mgr, l.UserID), l.EstimatedReturn.Format("2006-01-02"))
}

func handleReturn(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	id, ok := askID(sc, "Loan ID: ", "loan")
	if !ok {
		return
	}
	remarks, ok := ask(sc, "Condition remarks (optional): ")
	if !ok {
		return
	}
	l, err := mgr.ReturnLoan(sess, id, remarks)
	if err != nil {
		report("return loan", err)
		return
	}
	t, err := mgr.Tools.Get(l.ToolID)
	if err != nil {
		fmt.Printf("Loan %d returned.\n", l.ID)
		report("read tool", err)
		return
	}
	fmt.Printf("Loan %d returned. '%s' now has %d of %d available\n",
		l.ID, t.Name, t.AvailableQuantity, t.TotalQuantity)
}

func handleListLoans(sc *bufio.Scanner, mgr *library.Manager) {
	status, ok := ask(sc, "Status (active, returned, expired; Enter for all): ")
	if !ok {
		return
	}
	loans, err := mgr.Loans.List(library.LoanStatus(status))
	if err != nil {
		report("list loans", err)
		return
	}
	printLoans(loans)
}

func handleMyLoans(mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	views, err := mgr.MyHistory(sess)
	if err != nil {
		report("list your loans", err)
		return
	}
	printLoanViews(views)
}

// ----- Requests -----

func handleRequest(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	toolID, ok := askID(sc, "Tool ID: ", "tool")
	if !ok {
		return
	}
	quantity, ok := askInt(sc, "Units [1]: ", 1)
	if !ok {
		return
	}
	days, ok := askInt(sc, fmt.Sprintf("Days [%d]: ", mgr.DefaultLoanDays()), 0)
	if !ok {
		return
	}
	why, ok := ask(sc, "What do you need it for? ")
	if !ok {
		return
	}
	sol, err := mgr.RequestLoan(sess, toolID, quantity, days, why)
	if err != nil {
		report("file request", err)
		return
	}
	fmt.Printf("Request %d filed. An administrator will review it.\n", sol.ID)
}

func handleListRequests(mgr *library.Manager) {
	sols, err := mgr.ListSolicitations(library.SolicitationPending)
	if err != nil {
		report("list requests", err)
		return
	}
	fmt.Println("Pending requests:")
	printSolicitations(sols)
}

func handleApprove(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	id, ok := askID(sc, "Request ID: ", "request")
	if !ok {
		return
	}
	remarks, ok := ask(sc, "Remarks (optional): ")
	if !ok {
		return
	}
	l, err := mgr.Approve(sess, id, remarks)
	if err != nil {
		if errors.Is(err, library.ErrInsufficientStock) {
			fmt.Println("Not enough stock right now; the request stays pending.")
		}
		report("approve request", err)
		return
	}
	fmt.Printf("Request %d approved as loan %d, due %s\n", id, l.ID, l.EstimatedReturn.Format("2006-01-02"))
}

func handleReject(sc *bufio.Scanner, mgr *library.Manager, sess library.Session) {
	if !needLogin(sess) {
		return
	}
	id, ok := askID(sc, "Request ID: ", "request")
	if !ok {
		return
	}
	reason, ok := ask(sc, "Reason: ")
	if !ok {
		return
	}
	if _, err := mgr.Reject(sess, id, reason); err != nil {
		report("reject request", err)
		return
	}
	fmt.Printf("Request %d rejected\n", id)
}

// ----- Reports -----

func handleSummary(mgr *library.Manager) {
	s, err := mgr.Reports.Summary()
	if err != nil {
		report("build summary", err)
		return
	}
	printSummary(s)
}

func handleLowStock(mgr *library.Manager) {
	tools, err := mgr.LowStock()
	if err != nil {
		report("list low stock", err)
		return
	}
	printTools(tools)
}

func handleOverdue(mgr *library.Manager) {
	views, err := mgr.Reports.OverdueLoans()
	if err != nil {
		report("list overdue loans", err)
		return
	}
	printLoanViews(views)
}

func handleTopTools(mgr *library.Manager) {
	tools, err := mgr.Reports.MostRequested(10)
	if err != nil {
		report("rank tools", err)
		return
	}
	printTools(tools)
}

func handleActiveUsers(mgr *library.Manager) {
	ranked, err := mgr.Reports.MostActiveUsers(5)
	if err != nil {
		report("rank users", err)
		return
	}
	printUserActivity(ranked)
}

func handleHolders(sc *bufio.Scanner, mgr *library.Manager) {
	id, ok := askID(sc, "Tool ID: ", "tool")
	if !ok {
		return
	}
	views, err := mgr.Reports.ToolHolders(id)
	if err != nil {
		report("list holders", err)
		return
	}
	printLoanViews(views)
}

func handleReconcile(mgr *library.Manager) {
	ds, err := mgr.Reports.Reconcile()
	if err != nil {
		report("reconcile", err)
		return
	}
	printDiscrepancies(ds)
}
