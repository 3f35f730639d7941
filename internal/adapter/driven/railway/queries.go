package railway

const meQuery = `query {
	me {
		id
		email
		name
	}
}`

const teamsQuery = `query {
	teams {
		edges {
			node {
				id
				name
			}
		}
	}
}`

const projectsQuery = `query Projects($first: Int!) {
	projects(first: $first) {
		edges {
			node {
				id
				name
				services {
					edges {
						node { id name }
					}
				}
				environments {
					edges {
						node { id name }
					}
				}
			}
		}
	}
}`

const deploymentsQuery = `query Deployments($first: Int!, $input: DeploymentListInput!) {
	deployments(first: $first, input: $input) {
		edges {
			node {
				id
				staticUrl
				status
				createdAt
				updatedAt
				meta
			}
		}
	}
}`

const deploymentQuery = `query Deployment($id: String!) {
	deployment(id: $id) {
		id
		staticUrl
		status
		createdAt
		updatedAt
		meta
	}
}`
