package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"community-toolshare/library"
)

// parseAssignments turns "name=Pick; status=in_repair" into a field map.
func parseAssignments(pairs []string) (map[string]string, error) {
	fields := map[string]string{}
	for _, group := range pairs {
		for _, pair := range strings.Split(group, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("expected field=value, got %q", pair)
			}
			fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return fields, nil
}

// ----- init -----

func newInitCmd(a *app) *cobra.Command {
	var in library.UserInput
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the first administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(fmt.Sprintf("Enter password for %s: ", in.Names))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			in.Password = pw
			u, err := a.mgr.Bootstrap(in)
			if err != nil {
				return err
			}
			fmt.Printf("Administrator '%s' created with ID %d\n", u.FullName(), u.ID)
			return nil
		},
	}
	userFlags(cmd, &in)
	return cmd
}

func userFlags(cmd *cobra.Command, in *library.UserInput) {
	cmd.Flags().StringVar(&in.Names, "names", "", "given names")
	cmd.Flags().StringVar(&in.Surnames, "surnames", "", "surnames")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.Address, "address", "", "street address")
}

// ----- tools -----

func newToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "tools", Short: "Manage the tool inventory"}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := a.mgr.Tools.List(all)
			if err != nil {
				return err
			}
			printTools(tools)
			return nil
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include retired tools")

	var byCategory bool
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tools by name, or by category with --category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			find := a.mgr.Tools.SearchByName
			if byCategory {
				find = a.mgr.Tools.SearchByCategory
			}
			tools, err := find(args[0])
			if err != nil {
				return err
			}
			printTools(tools)
			return nil
		},
	}
	search.Flags().BoolVar(&byCategory, "category", false, "match the category instead of the name")

	var (
		category string
		quantity int
		status   string
		value    float64
	)
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			t, err := a.mgr.AddTool(s, args[0], category, quantity, library.ToolStatus(status), value)
			if err != nil {
				return err
			}
			fmt.Printf("Added tool ID %d: %s x%d\n", t.ID, t.Name, t.TotalQuantity)
			return nil
		},
	}
	add.Flags().StringVar(&category, "category", "", "tool category")
	add.Flags().IntVar(&quantity, "quantity", 1, "total units")
	add.Flags().StringVar(&status, "status", string(library.ToolActive), "active, in_repair or out_of_service")
	add.Flags().Float64Var(&value, "value", 0, "estimated value per unit")

	var sets []string
	update := &cobra.Command{
		Use:   "update <tool id>",
		Short: "Edit tool fields: --set name=...; category=...; status=...; estimated_value=...",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "tool")
			if err != nil {
				return err
			}
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			patch, err := library.ParseToolPatch(fields)
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			t, err := a.mgr.UpdateTool(s, id, patch)
			if err != nil {
				return err
			}
			printTools([]library.Tool{*t})
			return nil
		},
	}
	update.Flags().StringArrayVar(&sets, "set", nil, "field=value, repeatable")

	retire := &cobra.Command{
		Use:   "retire <tool id>",
		Short: "Soft-delete a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "tool")
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			if err := a.mgr.RetireTool(s, id); err != nil {
				return err
			}
			fmt.Printf("Tool %d retired\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, search, add, update, retire)
	return cmd
}

func printTools(tools []library.Tool) {
	if len(tools) == 0 {
		fmt.Println("No tools found.")
		return
	}
	fmt.Printf("%-5s %-28s %-16s %-9s %-7s %-15s %-10s %s\n",
		"ID", "Name", "Category", "Available", "Total", "Status", "Value", "Requests")
	fmt.Println(strings.Repeat("-", 105))
	for _, t := range tools {
		status := string(t.Status)
		if !t.IsActive {
			status += " (retired)"
		}
		fmt.Printf("%-5d %-28s %-16s %-9d %-7d %-15s %-10.2f %d\n",
			t.ID, truncateString(t.Name, 28), truncateString(t.Category, 16),
			t.AvailableQuantity, t.TotalQuantity, status, t.EstimatedValue, t.RequestCount)
	}
}

// ----- users -----

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage residents and administrators"}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.mgr.Users.List(all)
			if err != nil {
				return err
			}
			printUsers(users)
			return nil
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include deactivated users")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search users by names or surnames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.mgr.Users.SearchByName(args[0])
			if err != nil {
				return err
			}
			printUsers(users)
			return nil
		},
	}

	var (
		in   library.UserInput
		role string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			pw, err := readPassword(fmt.Sprintf("Enter password for %s: ", in.Names))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			in.Password = pw
			in.Role = library.Role(role)
			u, err := a.mgr.AddUser(s, in)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s '%s' with ID %d\n", u.Role, u.FullName(), u.ID)
			return nil
		},
	}
	userFlags(add, &in)
	add.Flags().StringVar(&role, "role", string(library.RoleResident), "resident or administrator")

	var sets []string
	update := &cobra.Command{
		Use:   "update <user id>",
		Short: "Edit user fields: --set names=...; surnames=...; phone=...; address=...; role=...",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			patch, err := library.ParseUserPatch(fields)
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			u, err := a.mgr.UpdateUser(s, id, patch)
			if err != nil {
				return err
			}
			printUsers([]library.User{*u})
			return nil
		},
	}
	update.Flags().StringArrayVar(&sets, "set", nil, "field=value, repeatable")

	deactivate := &cobra.Command{
		Use:   "deactivate <user id>",
		Short: "Soft-delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			if err := a.mgr.DeactivateUser(s, id); err != nil {
				return err
			}
			fmt.Printf("User %d deactivated\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, search, add, update, deactivate)
	return cmd
}

func printUsers(users []library.User) {
	if len(users) == 0 {
		fmt.Println("No users found.")
		return
	}
	fmt.Printf("%-5s %-30s %-16s %-25s %-14s %s\n", "ID", "Name", "Phone", "Address", "Role", "Active")
	fmt.Println(strings.Repeat("-", 100))
	for _, u := range users {
		fmt.Printf("%-5d %-30s %-16s %-25s %-14s %t\n",
			u.ID, truncateString(u.FullName(), 30), u.Phone, truncateString(u.Address, 25), u.Role, u.IsActive)
	}
}

// ----- loans -----

func newLoansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "loans", Short: "Lend and return tools"}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List loans (marks overdue ones as expired)",
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := a.mgr.Loans.List(library.LoanStatus(status))
			if err != nil {
				return err
			}
			printLoans(loans)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "active, returned or expired")

	var (
		quantity int
		days     int
		remarks  string
	)
	create := &cobra.Command{
		Use:   "create <user id> <tool id>",
		Short: "Lend units directly, without a borrow request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			toolID, err := parseID(args[1], "tool")
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			l, err := a.mgr.CreateLoan(s, userID, toolID, quantity, days, remarks)
			if err != nil {
				return err
			}
			fmt.Printf("Loan %d created, due %s\n", l.ID, l.EstimatedReturn.Format("2006-01-02"))
			return nil
		},
	}
	create.Flags().IntVar(&quantity, "quantity", 1, "units to lend")
	create.Flags().IntVar(&days, "days", 0, "loan length in days (0 uses the configured default)")
	create.Flags().StringVar(&remarks, "remarks", "", "free-form remarks")

	var returnRemarks string
	ret := &cobra.Command{
		Use:   "return <loan id>",
		Short: "Close an active or expired loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "loan")
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			l, err := a.mgr.ReturnLoan(s, id, returnRemarks)
			if err != nil {
				return err
			}
			fmt.Printf("Loan %d returned, %d unit(s) back in stock\n", l.ID, l.Quantity)
			return nil
		},
	}
	ret.Flags().StringVar(&returnRemarks, "remarks", "", "condition notes")

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue loans as expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.mgr.Loans.SweepExpired()
			if err != nil {
				return err
			}
			fmt.Printf("%d loan(s) marked expired\n", n)
			return nil
		},
	}

	cmd.AddCommand(list, create, ret, sweep)
	return cmd
}

func printLoans(loans []library.Loan) {
	if len(loans) == 0 {
		fmt.Println("No loans found.")
		return
	}
	fmt.Printf("%-5s %-6s %-6s %-5s %-12s %-12s %-12s %-9s %s\n",
		"ID", "User", "Tool", "Qty", "Started", "Due", "Returned", "Status", "Remarks")
	fmt.Println(strings.Repeat("-", 110))
	for _, l := range loans {
		returned := "-"
		if l.ActualReturn != nil {
			returned = l.ActualReturn.Format("2006-01-02")
		}
		fmt.Printf("%-5d %-6d %-6d %-5d %-12s %-12s %-12s %-9s %s\n",
			l.ID, l.UserID, l.ToolID, l.Quantity,
			l.StartedAt.Format("2006-01-02"), l.EstimatedReturn.Format("2006-01-02"), returned,
			l.Status, truncateString(l.Remarks, 40))
	}
}

// ----- requests -----

func newRequestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "requests", Short: "Borrow requests awaiting an administrator"}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List borrow requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			sols, err := a.mgr.ListSolicitations(library.SolicitationStatus(status))
			if err != nil {
				return err
			}
			printSolicitations(sols)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "pending, approved or rejected")

	var (
		quantity      int
		days          int
		justification string
	)
	create := &cobra.Command{
		Use:   "create <tool id>",
		Short: "Ask to borrow a tool as the --as user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolID, err := parseID(args[0], "tool")
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			sol, err := a.mgr.RequestLoan(s, toolID, quantity, days, justification)
			if err != nil {
				return err
			}
			fmt.Printf("Request %d filed and pending review\n", sol.ID)
			return nil
		},
	}
	create.Flags().IntVar(&quantity, "quantity", 1, "units requested")
	create.Flags().IntVar(&days, "days", 0, "loan length in days (0 uses the configured default)")
	create.Flags().StringVar(&justification, "why", "", "justification")

	var remarks string
	approve := &cobra.Command{
		Use:   "approve <request id>",
		Short: "Approve a pending request and create its loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			l, err := a.mgr.Approve(s, id, remarks)
			if err != nil {
				return err
			}
			fmt.Printf("Request %d approved as loan %d, due %s\n", id, l.ID, l.EstimatedReturn.Format("2006-01-02"))
			return nil
		},
	}
	approve.Flags().StringVar(&remarks, "remarks", "", "administrator remarks")

	var reason string
	reject := &cobra.Command{
		Use:   "reject <request id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			if _, err := a.mgr.Reject(s, id, reason); err != nil {
				return err
			}
			fmt.Printf("Request %d rejected\n", id)
			return nil
		},
	}
	reject.Flags().StringVar(&reason, "reason", "", "reason given to the requester")

	cmd.AddCommand(list, create, approve, reject)
	return cmd
}

func printSolicitations(sols []library.Solicitation) {
	if len(sols) == 0 {
		fmt.Println("No requests found.")
		return
	}
	fmt.Printf("%-5s %-6s %-6s %-5s %-5s %-17s %-9s %s\n",
		"ID", "User", "Tool", "Qty", "Days", "Requested", "Status", "Justification")
	fmt.Println(strings.Repeat("-", 100))
	for _, s := range sols {
		fmt.Printf("%-5d %-6d %-6d %-5d %-5d %-17s %-9s %s\n",
			s.ID, s.UserID, s.ToolID, s.Quantity, s.Days,
			s.RequestedAt.Format("2006-01-02 15:04"), s.Status, truncateString(s.Justification, 40))
	}
}

// ----- reports -----

func newReportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "Read-only views over inventory and loans"}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Inventory and circulation totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mgr.Reports.Summary()
			if err != nil {
				return err
			}
			printSummary(s)
			return nil
		},
	}

	var limit int
	lowStock := &cobra.Command{
		Use:   "low-stock",
		Short: "Tools at or below the stock threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tools []library.Tool
				err   error
			)
			if cmd.Flags().Changed("limit") {
				tools, err = a.mgr.Reports.LowStock(limit)
			} else {
				tools, err = a.mgr.LowStock()
			}
			if err != nil {
				return err
			}
			printTools(tools)
			return nil
		},
	}
	lowStock.Flags().IntVar(&limit, "limit", 0, "override the configured threshold")

	active := &cobra.Command{
		Use:   "active",
		Short: "Loans currently out",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := a.mgr.Reports.ActiveLoans()
			if err != nil {
				return err
			}
			printLoanViews(views)
			return nil
		},
	}

	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "Expired loans with borrower contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := a.mgr.Reports.OverdueLoans()
			if err != nil {
				return err
			}
			printLoanViews(views)
			return nil
		},
	}

	history := &cobra.Command{
		Use:   "history <user id>",
		Short: "Every loan a user has had",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			views, err := a.mgr.Reports.UserHistory(id)
			if err != nil {
				return err
			}
			printLoanViews(views)
			return nil
		},
	}

	var n int
	top := &cobra.Command{
		Use:   "top",
		Short: "Most requested tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := a.mgr.Reports.MostRequested(n)
			if err != nil {
				return err
			}
			printTools(tools)
			return nil
		},
	}
	top.Flags().IntVarP(&n, "count", "n", 10, "how many tools to show (0 for all)")

	var topUsers int
	activeUsers := &cobra.Command{
		Use:   "active-users",
		Short: "Residents with the most loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			ranked, err := a.mgr.Reports.MostActiveUsers(topUsers)
			if err != nil {
				return err
			}
			printUserActivity(ranked)
			return nil
		},
	}
	activeUsers.Flags().IntVarP(&topUsers, "count", "n", 5, "how many users to show (0 for all)")

	holders := &cobra.Command{
		Use:   "holders <tool id>",
		Short: "Who currently holds units of a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "tool")
			if err != nil {
				return err
			}
			views, err := a.mgr.Reports.ToolHolders(id)
			if err != nil {
				return err
			}
			printLoanViews(views)
			return nil
		},
	}

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Check stock against outstanding loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.mgr.Reports.Reconcile()
			if err != nil {
				return err
			}
			printDiscrepancies(ds)
			return nil
		},
	}

	cmd.AddCommand(summary, lowStock, active, overdue, history, top, activeUsers, holders, reconcile)
	return cmd
}

func printSummary(s library.Summary) {
	fmt.Printf("Tools:                 %d (%d active)\n", s.Tools, s.ActiveTools)
	fmt.Printf("Units:                 %d total, %d lent\n", s.TotalUnits, s.LentUnits)
	fmt.Printf("Estimated value:       %.2f\n", s.EstimatedValue)
	fmt.Printf("Users:                 %d (%d active)\n", s.Users, s.ActiveUsers)
	fmt.Printf("Outstanding loans:     %d (%d expired)\n", s.OutstandingLoans, s.ExpiredLoans)
	fmt.Printf("Pending requests:      %d\n", s.PendingSolicitations)
}

func printLoanViews(views []library.LoanView) {
	if len(views) == 0 {
		fmt.Println("No loans found.")
		return
	}
	fmt.Printf("%-5s %-24s %-16s %-24s %-4s %-12s %-9s %s\n",
		"Loan", "Borrower", "Phone", "Tool", "Qty", "Due", "Status", "Overdue")
	fmt.Println(strings.Repeat("-", 110))
	for _, v := range views {
		overdue := "-"
		if v.DaysOverdue > 0 {
			overdue = strconv.Itoa(v.DaysOverdue) + " day(s)"
		}
		fmt.Printf("%-5d %-24s %-16s %-24s %-4d %-12s %-9s %s\n",
			v.LoanID, truncateString(v.UserName, 24), v.Phone, truncateString(v.ToolName, 24),
			v.Quantity, v.EstimatedReturn.Format("2006-01-02"), v.Status, overdue)
	}
}

func printUserActivity(ranked []library.UserActivity) {
	if len(ranked) == 0 {
		fmt.Println("No loans recorded yet.")
		return
	}
	fmt.Printf("%-5s %-30s %-16s %s\n", "ID", "Name", "Phone", "Loans")
	fmt.Println(strings.Repeat("-", 60))
	for _, u := range ranked {
		fmt.Printf("%-5d %-30s %-16s %d\n", u.UserID, truncateString(u.Name, 30), u.Phone, u.Loans)
	}
}

func printDiscrepancies(ds []library.Discrepancy) {
	if len(ds) == 0 {
		fmt.Println("Inventory is consistent with outstanding loans.")
		return
	}
	fmt.Printf("%-5s %-6s %-9s %-11s %s\n", "Tool", "Total", "Available", "Outstanding", "Problem")
	fmt.Println(strings.Repeat("-", 75))
	for _, d := range ds {
		fmt.Printf("%-5d %-6d %-9d %-11d %s\n", d.ToolID, d.Total, d.Available, d.Outstanding, d.Reason)
	}
}
