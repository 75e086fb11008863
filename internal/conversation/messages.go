package conversation

import "fmt"

// Menu labels double as the text the user sends back.
const (
	LabelJoinGroup      = "Join Group 👥"
	LabelAddExpense     = "Add Expense 💵"
	LabelHistory        = "History 📜"
	LabelAcceptRequests = "Accept Requests ✅"
	LabelNotify         = "Notify 📢"
	LabelCloseExpenses  = "Close Expenses 🔒"

	LabelCreateGroup     = "Create Group ✏️"
	LabelSeeGroups       = "See Groups 📚"
	LabelSeeUserRequests = "See User Requests 📜"
)

var rootLabels = []string{LabelCreateGroup, LabelSeeGroups, LabelSeeUserRequests}

const (
	msgWelcome          = "Welcome to the Expense Tracker Bot! 🚀 Please register or login."
	msgRegisterButton   = "Register ✍️"
	msgLoginButton      = "Login 🔐"
	msgAskUsername      = "Please enter your username: 📝"
	msgAskPassword      = "Please enter your password: 🔐"
	msgUsernameTaken    = "Username already exists. Please enter a different username: 📝"
	msgInvalidLogin     = "Invalid username or password. Please try again. ❌"
	msgLoggedIn         = "You successfully logged in. 🎉 Your role is %s"
	msgStartFirst       = "Please send /start to register or log in."
	msgUserNotFound     = "🚫 User not found. Please try again."
	msgNotFound         = "🔍 Not found. It may have been removed."
	msgForbidden        = "⛔ This action is not available for your account."
	msgUseMenu          = "Please choose an option from the menu below. 👇"
	msgMainMenu         = "👋 Welcome to the main menu!"
	msgRootMenu         = "Welcome to the root menu!"
	msgNeedMembership   = "You need an accepted group membership first. Use \"" + LabelJoinGroup + "\"."
	msgNoMemberships    = "You are not a member of any group yet. 🚫"
	msgAskAmount        = "💵 Please enter the amount for the expense (numeric value):"
	msgInvalidAmount    = "⚠️ Invalid amount. Please enter a numeric value:"
	msgAskDescription   = "📝 Please enter the description for the expense:"
	msgEmptyDescription = "⚠️ Description cannot be empty. Please enter the description for the expense:"
	msgAskGroup         = "📋 Please select the group for this expense:"
	msgInvalidGroup     = "⚠️ Invalid group selected. Please try again."
	msgAskVictims       = "👥 Please select users to be affected by this expense:"
	msgConfirmOrCancel  = "Confirm or cancel the expense:"
	msgConfirmButton    = "Confirm ✅"
	msgCancelButton     = "Cancel ❌"
	msgUseButtons       = "👆 Please use the buttons above to pick users, then confirm or cancel."
	msgInvalidUser      = "🚫 Invalid user selected. Please try again."
	msgSelectionStale   = "⌛ This selection is no longer active."
	msgNoVictims        = "🚫 No users selected for this expense. Please choose at least one user."
	msgExpenseAdded     = "Expense successfully added."
	msgExpenseCanceled  = "❌ Expense addition has been canceled."
	msgNothingToCancel  = "❗ No ongoing action to cancel. Please start an action first."
	msgNothingToConfirm = "❗ No ongoing action to confirm. Please start an action first."
	msgActionCanceled   = "❌ Action canceled."

	msgNoGroupsToJoin   = "No groups available to join 🚫"
	msgPickGroupToJoin  = "Please select the group to join: 👥"
	msgAlreadyRequested = "User is already a member of this group."
	msgJoinRequested    = "You have requested to join the group %s. Please wait for approval. ⏳"
	msgNoPendingJoins   = "🔍 No pending group requests at the moment."
	msgPendingJoins     = "⏳ Pending group requests:"
	msgPendingJoinItem  = "%s wants to join the group %s 📩"
	msgAlreadyMember    = "User %s is already a member of %s"
	msgJoinApproved     = "Request approved successfully."
	msgJoinApprovedDM   = "Your request to join the group has been approved. Please click the /start command again to continue."
	msgPickGroupFor     = "📋 Please select a group to %s expenses:"
	msgNoExpenses       = "📊 No expenses found for this group."
	msgExpensesHeader   = "📊 Expenses for the group:"
	msgNotified         = "📢 Notifications have been sent to all users in the group."
	msgNotifiedPartial  = "📢 Notifications sent. %d user(s) could not be reached."
	msgClosed           = "Expenses Closed ✅"
	msgClosedDM         = "%s closed expenses"

	msgAskGroupName     = "Please provide a name for the new group: 🆕"
	msgEmptyGroupName   = "Group name cannot be empty. Please enter a name: 📝"
	msgGroupNameTaken   = "Name already exists. Please enter a different name: 📝"
	msgGroupCreated     = "New group is created successfully 🎉"
	msgFetchingGroups   = "Fetching groups... 🔍"
	msgNoGroups         = "No groups yet. 🚫"
	msgGroupItem        = "Group #%d 🏷️\nName: %s 📛\nMembers: %d 🧑‍🤝‍🧑"
	msgNoPendingUsers   = "No pending user requests. 🚫"
	msgPickUsers        = "Please select the users to approve: 👥"
	msgUserApproved     = "User %s has been approved successfully! ✅"
	msgUserAlreadyOK    = "User %s is already approved. ✅"
	msgUserApprovedDM   = "🎉 Congratulations! Your request has been approved. Please click the /start command again to continue."

	msgHelp = "Available commands:\n" +
		"/start - open your menu or register/login\n" +
		"/cancel - cancel the current action\n" +
		"/help - show this message"
)

func (e *Engine) contactLine() string {
	if e.supportContact == "" {
		return "an admin"
	}
	return "admin " + e.supportContact
}

func (e *Engine) pendingApproval() string {
	return fmt.Sprintf("Your account is not yet accepted. Please contact with %s for more information.", e.contactLine())
}

func (e *Engine) registeredPending() string {
	return fmt.Sprintf("⚠️ Your account is pending approval. Please be patient while it is reviewed.\n\n"+
		"Reach out to %s with your username to expedite the approval process.", e.contactLine())
}

func (e *Engine) alreadyHaveAccount() string {
	return fmt.Sprintf("You already have an account and cannot register or log in again. "+
		"If something looks wrong, please contact %s for assistance.", e.contactLine())
}
