package ticket_test

import (
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
	"github.com/trezcool/sdoims/core/ticket"
	"github.com/trezcool/sdoims/core/user"
	testutil "github.com/trezcool/sdoims/tests"
)

// directory resolves users straight from the users table.
type directory struct {
	users resource.Repository[user.User]
}

func (d directory) Contact(ctx context.Context, id int64) (mail.Address, error) {
	usr, err := d.users.Get(ctx, id, false)
	if err != nil {
		return mail.Address{}, err
	}
	return mail.Address{Name: usr.Name, Address: usr.Email}, nil
}

func (d directory) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, d.users, func(u user.User) string { return u.Name })
}

type fixture struct {
	env        *testutil.Env
	tickets    *ticket.Service
	categories *ticket.CategoryService
	ana, ben   user.User
	category   ticket.Category
	admin      core.Actor
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	users := testutil.Repo[user.User](env, user.Table)
	ana := user.User{Name: "Ana Reyes", Email: "ana@deped.ph", IsActive: true}
	ben := user.User{Name: "Ben Cruz", Email: "ben@deped.ph", IsActive: true}
	require.NoError(t, users.Create(ctx, &ana))
	require.NoError(t, users.Create(ctx, &ben))

	categories := ticket.NewCategoryService(testutil.Repo[ticket.Category](env, ticket.CategoryTable), env.Validate, env.Logger)
	tickets := ticket.NewService(testutil.Repo[ticket.Ticket](env, ticket.Table), categories, directory{users}, env.Mailer, env.Validate, env.Logger)

	admin := testutil.Superuser()
	cat := testutil.Must(categories.Create(ctx, admin, ticket.NewCategory{Name: "Network"})).Record

	return fixture{env: env, tickets: tickets, categories: categories, ana: ana, ben: ben, category: cat, admin: admin}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	filer := core.NewActor(f.ben.ID, f.ben.Name, f.ben.Email, testutil.Capabilities(ticket.Resource)...)

	res, err := f.tickets.Create(ctx, filer, ticket.NewTicket{Title: "No internet in Room 4", CategoryID: f.category.ID})
	require.NoError(t, err)
	tk := res.Record
	assert.Equal(t, ticket.StatusOpen, tk.Status)
	assert.Equal(t, ticket.PriorityMedium, tk.Priority)
	assert.Equal(t, f.ben.ID, tk.CreatedBy)
	assert.False(t, tk.AssignedTo.Valid)
	assert.Empty(t, res.Events, "creates are not broadcast")
	assert.Empty(t, f.env.Mailer.SentMessages(), "nobody to notify")

	page := testutil.Must(f.tickets.List(ctx, filer, resource.Query{Page: 1, Search: "network"}))
	assert.Equal(t, 1, page.Total, "tickets are searchable by category name")
}

func TestService_assignmentEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tk := testutil.Must(f.tickets.Create(ctx, f.admin, ticket.NewTicket{
		Title: "Printer jam", CategoryID: f.category.ID, Priority: "HIGH", AssignedTo: &f.ana.ID,
	})).Record
	assert.Equal(t, ticket.PriorityHigh, tk.Priority)

	sent := f.env.Mailer.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, []mail.Address{{Name: "Ana Reyes", Address: "ana@deped.ph"}}, sent[0].To)
	assert.Contains(t, sent[0].Subject, "assigned to you")
	assert.Contains(t, sent[0].TextContent, "Printer jam")
	f.env.Mailer.Reset()

	// same assignee: no new mail
	res := testutil.Must(f.tickets.Update(ctx, f.admin, tk.ID, ticket.UpdateTicket{Status: ticket.StatusInProgress, AssignedTo: &f.ana.ID}))
	assert.Equal(t, ticket.StatusInProgress, res.Record.Status)
	assert.Empty(t, f.env.Mailer.SentMessages())
	require.Len(t, res.Events, 1)
	assert.Equal(t, ticket.Channel, res.Events[0].Channel)
	assert.Equal(t, "ticket.updated", res.Events[0].Name)

	// hand over
	testutil.Must(f.tickets.Update(ctx, f.admin, tk.ID, ticket.UpdateTicket{AssignedTo: &f.ben.ID}))
	sent = f.env.Mailer.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ben@deped.ph", sent[0].To[0].Address)
}

func TestService_Update_validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tk := testutil.Must(f.tickets.Create(ctx, f.admin, ticket.NewTicket{Title: "Slow PC", CategoryID: f.category.ID})).Record

	ghost := int64(404)
	tests := []struct {
		name string
		in   ticket.UpdateTicket
	}{
		{"unknown status", ticket.UpdateTicket{Status: "reopened"}},
		{"unknown priority", ticket.UpdateTicket{Priority: "urgent"}},
		{"unknown assignee", ticket.UpdateTicket{AssignedTo: &ghost}},
		{"unknown category", ticket.UpdateTicket{CategoryID: 404}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tickets.Update(ctx, f.admin, tk.ID, tt.in)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, f.env.Mailer.SentMessages())
}

func TestService_Update_forbiddenBeforeRead(t *testing.T) {
	f := setup(t)
	reader := testutil.Actor(testutil.Capabilities(ticket.Resource, core.ActionAccess)...)
	_, err := f.tickets.Update(context.Background(), reader, 404, ticket.UpdateTicket{Title: "x"})
	assert.True(t, core.IsForbidden(err), "forbidden wins over not found")
}

func TestService_FormOptions(t *testing.T) {
	f := setup(t)
	opts := testutil.Must(f.tickets.FormOptions(context.Background()))
	assert.Equal(t, []resource.Option{{Value: f.category.ID, Label: "Network"}}, opts["categories"])
	assert.Len(t, opts["assignees"], 2)
}
