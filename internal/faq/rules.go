package faq

import (
	"fmt"
	"regexp"

	"marketplace-assistant/internal/models"
)

var orderNumberPattern = regexp.MustCompile(`#?(\d{4,})`)

// DefaultRules returns the marketplace FAQ table. Account security answers sit
// above general profile answers, and the service booking rule claims any
// mention of "service", including "customer service".
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:       "password-reset",
			Category: "account",
			Priority: 200,
			Question: "How do I reset my password?",
			Patterns: []string{
				`\bpassword\b`,
				`\bforgot\b.*\b(login|log in|sign in)\b`,
				`\bcan'?t (log|sign) ?in\b`,
				`\blocked out\b`,
			},
			Answer: "To reset your password, tap \"Forgot password?\" on the sign-in screen and follow the link we email you. " +
				"If you are signed in, go to Profile > Settings > Security to change it.",
			Actions: []models.ActionButton{{Label: "Reset password", URL: "/auth/forgot-password"}},
		},
		{
			ID:       "returns-refunds",
			Category: "orders",
			Priority: 190,
			Question: "How do I return an item or get a refund?",
			Patterns: []string{
				`\breturns?\b`,
				`\brefunds?\b`,
				`\bmoney back\b`,
				`\bsend (it|this|an item|items) back\b`,
			},
			Answer: "You can return most items within 30 days of delivery. Open My Orders, choose the order and tap \"Request return\". " +
				"Refunds go back to your original payment method within 5-10 business days after the vendor receives the item.",
			Actions: []models.ActionButton{{Label: "My orders", URL: "/orders"}},
		},
		{
			ID:       "order-tracking",
			Category: "orders",
			Priority: 180,
			Question: "Where is my order?",
			Patterns: []string{
				`\btrack(ing)?\b`,
				`\bwhere('?s| is) my (order|package|parcel|delivery)\b`,
				`\border status\b`,
				`\bstatus of my order\b`,
			},
			Answer: "You can follow every order under My Orders. Each order shows its current status and the carrier tracking link once it has shipped.",
			Respond: func(query string) string {
				if m := orderNumberPattern.FindStringSubmatch(query); m != nil {
					return fmt.Sprintf("You can follow order #%s under My Orders. It shows the current status "+
						"and the carrier tracking link once the vendor has shipped it.", m[1])
				}
				return "You can follow every order under My Orders. Each order shows its current status and the carrier tracking link once it has shipped."
			},
			Actions: []models.ActionButton{{Label: "Track orders", URL: "/orders"}},
		},
		{
			ID:       "cancellations",
			Category: "orders",
			Priority: 175,
			Question: "How do I cancel an order, booking or registration?",
			Patterns: []string{
				`\bcancel(l?ation|l?ing|l?ed)?\b`,
			},
			Answer: "Orders can be cancelled from My Orders until the vendor ships them. Service bookings and event registrations " +
				"can be cancelled from their detail page; the provider's or organizer's cancellation policy applies.",
			Actions: []models.ActionButton{{Label: "My orders", URL: "/orders"}},
		},
		{
			ID:       "shipping",
			Category: "orders",
			Priority: 170,
			Question: "How long does shipping take?",
			Patterns: []string{
				`\bshipping\b`,
				`\bship(ped|s)?\b`,
				`\bdeliver(y|ies|ed)?\b`,
				`\bhow long\b.*\b(arrive|take)\b`,
			},
			Answer: "Shipping times depend on the vendor and your location. Most orders arrive in 3-7 business days, " +
				"and the estimate is shown at checkout and on the order page.",
		},
		{
			ID:       "payments",
			Category: "payments",
			Priority: 160,
			Question: "Which payment methods are accepted?",
			Patterns: []string{
				`\bpay(ment|ments|ing)?\b`,
				`\bcredit card\b`,
				`\bdebit card\b`,
				`\bpaypal\b`,
				`\binvoices?\b`,
			},
			Answer: "We accept major credit and debit cards, Apple Pay and Google Pay. Payments are processed securely at checkout " +
				"and you can find every receipt under My Orders.",
		},
		{
			ID:       "cart-checkout",
			Category: "shop",
			Priority: 150,
			Question: "How does the cart and checkout work?",
			Patterns: []string{
				`\bcart\b`,
				`\bcheckout\b`,
				`\bcheck out\b`,
				`\bbasket\b`,
			},
			Answer: "Add products to your cart from any product page, then open the cart to review quantities and tap Checkout. " +
				"Items from different vendors can be bought in one checkout.",
			Actions: []models.ActionButton{{Label: "Open cart", URL: "/cart"}},
		},
		{
			ID:       "vendor-onboarding",
			Category: "selling",
			Priority: 140,
			Question: "How do I start selling on the marketplace?",
			Patterns: []string{
				`\bsell(er|ers|ing)?\b`,
				`\bvendors?\b`,
				`\bopen (a|my) (shop|store)\b`,
				`\bbecome a (seller|vendor|provider|organizer)\b`,
				`\blist (my )?products?\b`,
			},
			Answer: "Go to Profile > Become a Vendor and complete your business details. Once approved you can list products, " +
				"offer services or publish events from your vendor dashboard.",
			Actions: []models.ActionButton{{Label: "Become a vendor", URL: "/vendor/register"}},
		},
		{
			ID:       "vehicles",
			Category: "vehicles",
			Priority: 130,
			Question: "How do I buy or list a vehicle?",
			Patterns: []string{
				`\bvehicles?\b`,
				`\bcars?\b`,
				`\bmotorcycles?\b`,
				`\btest drive\b`,
			},
			Answer: "Browse the Vehicles section to filter by make, model, year and price. Message the seller from a listing " +
				"to ask questions or arrange a test drive.",
			Actions: []models.ActionButton{{Label: "Browse vehicles", URL: "/vehicles"}},
		},
		{
			ID:       "service-booking",
			Category: "services",
			Priority: 120,
			Question: "How do I book a service?",
			Patterns: []string{
				`\bservices?\b`,
				`\bappointments?\b`,
				`\bbook(ing)? (a|an)\b`,
			},
			Answer: "Open the Services section, pick a provider and choose an available time slot. You will get a confirmation " +
				"once the provider accepts, and you can manage bookings from your profile.",
			Actions: []models.ActionButton{{Label: "Browse services", URL: "/services"}},
		},
		{
			ID:       "events",
			Category: "events",
			Priority: 110,
			Question: "How do I find and register for events?",
			Patterns: []string{
				`\bevents?\b`,
				`\btickets?\b`,
				`\bconcerts?\b`,
				`\bworkshops?\b`,
				`\bmeetups?\b`,
			},
			Answer: "The Events section lists upcoming events near you. Open an event to see details and tap Register to get " +
				"your ticket. Your registrations appear under My Events.",
			Actions: []models.ActionButton{{Label: "Browse events", URL: "/events"}},
		},
		{
			ID:       "sim-racing",
			Category: "sim-racing",
			Priority: 100,
			Question: "How does sim racing work?",
			Patterns: []string{
				`\bsim ?racing\b`,
				`\bsimulators?\b`,
				`\bleaderboards?\b`,
				`\blap times?\b`,
				`\bracing\b`,
			},
			Answer: "Sim Racing lets you join leagues, book simulator sessions and compare lap times on the leaderboards. " +
				"Start from the Sim Racing tab to find a session.",
			Actions: []models.ActionButton{{Label: "Sim racing", URL: "/sim-racing"}},
		},
		{
			ID:       "social-feed",
			Category: "social",
			Priority: 90,
			Question: "How does the social feed work?",
			Patterns: []string{
				`\bfeed\b`,
				`\bposts?\b`,
				`\bfollow(ers|ing)?\b`,
				`\bcomments?\b`,
			},
			Answer: "The feed shows posts from people and vendors you follow. Tap + to share a post, and like or comment to " +
				"join the conversation.",
			Actions: []models.ActionButton{{Label: "Open feed", URL: "/feed"}},
		},
		{
			ID:       "profile",
			Category: "account",
			Priority: 80,
			Question: "How do I update my profile?",
			Patterns: []string{
				`\bprofile\b`,
				`\baccount settings\b`,
				`\bavatar\b`,
				`\bchange (my )?(name|email|photo|picture)\b`,
				`\bedit\b.*\baccount\b`,
			},
			Answer: "Open Profile and tap Edit to change your name, photo, bio and contact details. Notification and privacy " +
				"options live under Profile > Settings.",
			Actions: []models.ActionButton{{Label: "Edit profile", URL: "/profile/edit"}},
		},
		{
			ID:       "contact-support",
			Category: "support",
			Priority: 70,
			Question: "How do I contact support?",
			Patterns: []string{
				`\bsupport\b`,
				`\bcontact (us|someone|support)\b`,
				`\btalk to (a )?(human|person|agent|someone)\b`,
				`\bcomplain(t|ts)?\b`,
			},
			Answer: "You can reach our support team from Help Center > Contact Support. We usually reply within 24 hours.",
			Actions: []models.ActionButton{{Label: "Contact support", URL: "/help/contact"}},
		},
		{
			ID:       "goodbye",
			Category: "smalltalk",
			Priority: 60,
			Question: "Goodbye",
			Patterns: []string{
				`^(bye|goodbye|see you|see ya|cya)\b`,
				`\bgoodbye\b`,
			},
			Answer: "Goodbye! Come back any time you need help with the marketplace.",
		},
		{
			ID:       "thanks",
			Category: "smalltalk",
			Priority: 55,
			Question: "Thank you",
			Patterns: []string{
				`^(thanks|thank you|thx|ty)\b`,
				`\bthank(s| you)\b`,
			},
			Answer: "You're welcome! Is there anything else I can help you with?",
		},
		{
			ID:       "greeting",
			Category: "smalltalk",
			Priority: 50,
			Question: "Hello",
			Patterns: []string{
				`^(hi|hello|hey|hiya|howdy|greetings|good (morning|afternoon|evening))\b`,
			},
			Answer: "Hello! I'm your marketplace assistant. I can help with orders, returns, services, events, " +
				"sim racing and selling on the platform. What can I do for you?",
		},
		{
			ID:       "help",
			Category: "support",
			Priority: 10,
			Question: "What can you help with?",
			Patterns: []string{
				`^help\b`,
				`\bhelp me\b`,
				`\bwhat can you do\b`,
				`\bhow does this (work|app work)\b`,
			},
			Answer: "I can answer questions about shopping, orders and returns, vehicles, service bookings, events, sim racing, " +
				"the social feed and becoming a vendor. Just ask!",
			Actions: []models.ActionButton{{Label: "Help center", URL: "/help"}},
		},
	}
}
