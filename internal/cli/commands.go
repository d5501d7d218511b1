package cli

// Command describes one escrowctl command for usage text and completion.
type Command struct {
	Name        string
	Summary     string
	Subcommands []Command
}

// GlobalFlags are accepted before any command.
var GlobalFlags = []string{"--config", "--api-url", "--output", "--log-level", "--log-format", "--help"}

// Commands is the escrowctl command tree.
var Commands = []Command{
	{Name: "login", Summary: "Sign in and store the session token"},
	{Name: "logout", Summary: "Forget the stored session token"},
	{Name: "signup", Summary: "Create an account"},
	{Name: "whoami", Summary: "Show the signed-in user"},
	{Name: "tx", Summary: "Work with escrow transactions", Subcommands: []Command{
		{Name: "list", Summary: "List your purchases or sales"},
		{Name: "show", Summary: "Show one transaction and its progress"},
		{Name: "create", Summary: "Offer a product to a buyer"},
		{Name: "accept", Summary: "Accept an offer as the buyer"},
		{Name: "reject", Summary: "Reject an offer as the buyer"},
		{Name: "pay", Summary: "Pay for an accepted offer"},
		{Name: "return", Summary: "Report the outcome of a payment redirect"},
		{Name: "ship", Summary: "Record shipping details as the seller"},
		{Name: "delivered", Summary: "Confirm a physical delivery"},
		{Name: "deliver", Summary: "Deliver digital goods as the seller"},
		{Name: "verify", Summary: "Accept the delivered goods"},
		{Name: "dispute", Summary: "Open a dispute on delivered goods"},
		{Name: "cancel", Summary: "Ask support to cancel"},
		{Name: "help", Summary: "Ask support for help"},
		{Name: "update", Summary: "Edit a transaction (admin)"},
		{Name: "delete", Summary: "Delete a transaction (admin)"},
	}},
	{Name: "product", Summary: "Manage your products", Subcommands: []Command{
		{Name: "list", Summary: "List products"},
		{Name: "show", Summary: "Show one product"},
		{Name: "create", Summary: "Create a product"},
		{Name: "update", Summary: "Edit a product"},
		{Name: "remove", Summary: "Withdraw a product from sale"},
		{Name: "delete", Summary: "Delete a product (admin)"},
	}},
	{Name: "address", Summary: "Manage shipping addresses", Subcommands: []Command{
		{Name: "list", Summary: "List addresses"},
		{Name: "show", Summary: "Show one address"},
		{Name: "create", Summary: "Add an address"},
		{Name: "update", Summary: "Edit an address"},
		{Name: "remove", Summary: "Withdraw an address"},
		{Name: "delete", Summary: "Delete an address (admin)"},
	}},
	{Name: "payment", Summary: "Inspect payments (admin)", Subcommands: []Command{
		{Name: "list", Summary: "List payments"},
		{Name: "show", Summary: "Show one payment"},
		{Name: "create", Summary: "Record a payment"},
		{Name: "update", Summary: "Edit a payment"},
		{Name: "delete", Summary: "Delete a payment"},
	}},
	{Name: "withdrawal", Summary: "Withdraw your balance", Subcommands: []Command{
		{Name: "list", Summary: "List withdrawals"},
		{Name: "show", Summary: "Show one withdrawal"},
		{Name: "create", Summary: "Request a withdrawal"},
		{Name: "update", Summary: "Approve or reject a withdrawal (admin)"},
		{Name: "delete", Summary: "Delete a withdrawal (admin)"},
	}},
	{Name: "user", Summary: "Profile and account administration", Subcommands: []Command{
		{Name: "list", Summary: "List users (admin)"},
		{Name: "show", Summary: "Show a user"},
		{Name: "create", Summary: "Create an account (admin)"},
		{Name: "update", Summary: "Edit a profile"},
		{Name: "delete", Summary: "Delete an account (admin)"},
		{Name: "password", Summary: "Change your password"},
	}},
	{Name: "file", Summary: "Uploaded files", Subcommands: []Command{
		{Name: "list", Summary: "List files (admin)"},
		{Name: "show", Summary: "Show file metadata"},
		{Name: "upload", Summary: "Upload a file"},
		{Name: "delete", Summary: "Delete a file (admin)"},
	}},
	{Name: "dashboard", Summary: "Show totals for your account"},
	{Name: "watch", Summary: "Poll your transactions and report changes"},
	{Name: "completion", Summary: "Generate shell completion script", Subcommands: []Command{
		{Name: "bash", Summary: "Generate bash completion"},
		{Name: "zsh", Summary: "Generate zsh completion"},
		{Name: "fish", Summary: "Generate fish completion"},
	}},
	{Name: "version", Summary: "Show version information"},
}

// Find returns the named top-level command.
func Find(name string) (Command, bool) {
	for _, c := range Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Names lists the subcommand names of c.
func (c Command) Names() []string {
	out := make([]string, 0, len(c.Subcommands))
	for _, s := range c.Subcommands {
		out = append(out, s.Name)
	}
	return out
}
