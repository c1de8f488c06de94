package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create flows table
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				template_id VARCHAR(255) NOT NULL DEFAULT '',
				version INTEGER NOT NULL DEFAULT 1,
				document JSONB NOT NULL,
				node_count INTEGER NOT NULL DEFAULT 0,
				edge_count INTEGER NOT NULL DEFAULT 0,
				rule_count INTEGER NOT NULL DEFAULT 0,
				exported_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_name ON flows(name);
			CREATE INDEX idx_flows_exported_at ON flows(exported_at);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);
		`,
		2: `
			-- Migration 2: filter flows by template
			CREATE INDEX idx_flows_template_id ON flows(template_id);
		`,
	}
}
